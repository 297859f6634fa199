/*
Copyright 2020 Huawei Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ymodem

import (
	"fmt"
	"io"
	"time"
)

// Reader is the capability a Sender needs from its transport: a single
// timed byte read that reports whether a byte actually arrived before the
// timeout elapsed.
type Reader interface {
	ReadByte(timeout time.Duration) (b byte, ok bool, err error)
}

// Writer is the capability a Sender needs to transmit frames.
type Writer interface {
	Write(p []byte) (int, error)
}

// Observer is notified of transfer progress. It is a pure side channel:
// nothing it does affects the outcome of Send.
type Observer interface {
	OnInfo(name string, length int64)
	OnPacket(seq uint8, size int, totalPackets, successCount, errorCount int)
	OnDone(success bool)
}

// Sender drives one YMODEM-1K batch transmission over a Reader/Writer
// pair.
type Sender struct {
	reader             Reader
	writer             Writer
	dialect            Dialect
	retry              int
	timeout            time.Duration
	observer           Observer
	emitOptionalFields bool
}

// NewSender returns a Sender using the given dialect, retry budget, and
// per-read timeout.
func NewSender(reader Reader, writer Writer, dialect Dialect, retry int, timeout time.Duration) *Sender {
	return &Sender{
		reader:  reader,
		writer:  writer,
		dialect: dialect,
		retry:   retry,
		timeout: timeout,
	}
}

// WithObserver attaches a progress observer.
func (s *Sender) WithObserver(o Observer) *Sender {
	s.observer = o
	return s
}

// WithOptionalFieldEmission controls whether the info block emits the
// date/mode/serial fields the active dialect's flags describe. Default is
// false, matching this uploader's observed wire behavior.
func (s *Sender) WithOptionalFieldEmission(emit bool) *Sender {
	s.emitOptionalFields = emit
	return s
}

type phase int

const (
	phaseNegotiateInfo phase = iota
	phaseSendInfo
	phaseNegotiateData
	phaseSendData
	phaseSendEOT
	phaseSendNull
	phaseDone
)

// Send transmits stream as a single-file YMODEM batch described by info.
// It returns nil on success, or one of ErrCancelled, ErrDeclined,
// ErrRetriesExhausted, or a wrapped I/O error on failure.
func (s *Sender) Send(stream io.Reader, info FileInfo) error {
	if s.observer != nil {
		s.observer.OnInfo(info.Name, info.Length)
	}

	sess := &session{packetSize: blockKindFor(s.dialect).size()}

	ph := phaseNegotiateInfo
	var err error
	for ph != phaseDone {
		switch ph {
		case phaseNegotiateInfo:
			sess.crcMode, err = s.negotiate()
			ph = phaseSendInfo
		case phaseSendInfo:
			err = s.sendInfoBlock(sess, info)
			ph = phaseNegotiateData
		case phaseNegotiateData:
			sess.crcMode, err = s.negotiate()
			ph = phaseSendData
		case phaseSendData:
			err = s.sendDataBlocks(sess, stream)
			ph = phaseSendEOT
		case phaseSendEOT:
			err = s.sendEOT(sess)
			ph = phaseSendNull
		case phaseSendNull:
			err = s.sendNullBlock(sess)
			ph = phaseDone
		}
		if err != nil {
			if s.observer != nil {
				s.observer.OnDone(false)
			}
			return err
		}
	}
	if s.observer != nil {
		s.observer.OnDone(true)
	}
	return nil
}

// negotiate waits for the receiver to request checksum (NAK) or CRC-16
// ('C') mode. It is used identically for Phase A (before the info block)
// and Phase C (before the data blocks).
func (s *Sender) negotiate() (crcMode bool, err error) {
	errorCount := 0
	cancelSeen := false
	for {
		b, ok, rerr := s.reader.ReadByte(s.timeout)
		if rerr != nil {
			return false, fmt.Errorf("ymodem: negotiate mode: %w", rerr)
		}
		if ok {
			switch controlByte(b) {
			case asciiNAK:
				return false, nil
			case ymodemPOLL:
				return true, nil
			case asciiCAN:
				if cancelSeen {
					return false, ErrCancelled
				}
				cancelSeen = true
			case asciiEOT:
				return false, ErrDeclined
			default:
				cancelSeen = false
			}
		} else {
			cancelSeen = false
		}
		errorCount++
		if errorCount > s.retry {
			s.cancel()
			return false, ErrRetriesExhausted
		}
	}
}

func (s *Sender) sendInfoBlock(sess *session, info FileInfo) error {
	payload := buildInfoPayload(s.dialect, info, sess.packetSize, s.emitOptionalFields)
	frame := buildFrame(sess.packetSize, 0, payload, sess.crcMode)
	return s.sendFixedFrameWithRetry(sess, frame)
}

// sendDataBlocks reads stream in packetSize chunks, padding the final
// short read with 0x1A, and sends one packet per chunk. A zero-length
// stream sends zero data packets.
func (s *Sender) sendDataBlocks(sess *session, stream io.Reader) error {
	sess.seq = 1
	buf := make([]byte, sess.packetSize)
	for {
		n, rerr := io.ReadFull(stream, buf)
		if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
			return fmt.Errorf("ymodem: read file data: %w", rerr)
		}
		if n == 0 {
			break
		}
		sess.totalPackets++
		payload := padPayload(buf[:n], sess.packetSize, asciiSUBPad)
		frame := buildFrame(sess.packetSize, sess.seq, payload, sess.crcMode)
		if err := s.sendDataFrameWithRetry(sess, frame); err != nil {
			return err
		}
		sess.seq++
		if n < sess.packetSize {
			break
		}
	}
	return nil
}

// sendDataFrameWithRetry is the Phase D inner retry loop: write, wait one
// byte, ACK advances, CAN/CAN cancels, anything else (including timeout)
// retransmits against the retry budget.
func (s *Sender) sendDataFrameWithRetry(sess *session, frame []byte) error {
	cancelSeen := false
	for {
		if _, err := s.writer.Write(frame); err != nil {
			return fmt.Errorf("ymodem: write data packet: %w", err)
		}
		b, ok, err := s.reader.ReadByte(s.timeout)
		if err != nil {
			return fmt.Errorf("ymodem: await data ack: %w", err)
		}
		if ok && controlByte(b) == asciiACK {
			sess.successCount++
			sess.errorCount = 0
			if s.observer != nil {
				s.observer.OnPacket(sess.seq, len(frame), sess.totalPackets, sess.successCount, sess.errorCount)
			}
			return nil
		}
		if ok && controlByte(b) == asciiCAN {
			if cancelSeen {
				s.cancel()
				return ErrCancelled
			}
			cancelSeen = true
		} else {
			cancelSeen = false
		}
		sess.errorCount++
		if s.observer != nil {
			s.observer.OnPacket(sess.seq, len(frame), sess.totalPackets, sess.successCount, sess.errorCount)
		}
		if sess.errorCount > s.retry {
			s.cancel()
			return ErrRetriesExhausted
		}
	}
}

// sendFixedFrameWithRetry drives the simpler ACK-or-retry loop used for
// the info block (Phase B) where there is no cancel tie-break, matching
// the original uploader's info-block retry behavior.
func (s *Sender) sendFixedFrameWithRetry(sess *session, frame []byte) error {
	errorCount := 0
	for {
		if _, err := s.writer.Write(frame); err != nil {
			return fmt.Errorf("ymodem: write info packet: %w", err)
		}
		b, ok, err := s.reader.ReadByte(s.timeout)
		if err != nil {
			return fmt.Errorf("ymodem: await info ack: %w", err)
		}
		if ok && controlByte(b) == asciiACK {
			return nil
		}
		errorCount++
		if errorCount > s.retry {
			s.cancel()
			return ErrRetriesExhausted
		}
	}
}

func (s *Sender) sendEOT(sess *session) error {
	errorCount := 0
	for {
		if _, err := s.writer.Write([]byte{byte(asciiEOT)}); err != nil {
			return fmt.Errorf("ymodem: write EOT: %w", err)
		}
		b, ok, err := s.reader.ReadByte(s.timeout)
		if err != nil {
			return fmt.Errorf("ymodem: await EOT ack: %w", err)
		}
		if ok && controlByte(b) == asciiACK {
			return nil
		}
		errorCount++
		if errorCount > s.retry {
			s.cancel()
			return ErrRetriesExhausted
		}
	}
}

func (s *Sender) sendNullBlock(sess *session) error {
	payload := make([]byte, sess.packetSize)
	frame := buildFrame(sess.packetSize, 0, payload, sess.crcMode)
	return s.sendFixedFrameWithRetry(sess, frame)
}

func (s *Sender) cancel() {
	_, _ = s.writer.Write([]byte{byte(asciiCAN), byte(asciiCAN)})
}
