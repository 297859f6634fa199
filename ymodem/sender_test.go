package ymodem

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLink is an in-memory Reader/Writer pair. outbound records every
// frame written by the Sender; inbound is a scripted queue of bytes the
// Sender will receive, one per ReadByte call. A nil entry simulates a
// read timeout (ok=false).
type fakeLink struct {
	inbound  []*byte
	pos      int
	outbound [][]byte
}

func (f *fakeLink) ReadByte(timeout time.Duration) (byte, bool, error) {
	if f.pos >= len(f.inbound) {
		return 0, false, nil
	}
	b := f.inbound[f.pos]
	f.pos++
	if b == nil {
		return 0, false, nil
	}
	return *b, true, nil
}

func (f *fakeLink) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	f.outbound = append(f.outbound, cp)
	return len(p), nil
}

func bp(b byte) *byte { return &b }

func ackSequence(n int) []*byte {
	out := make([]*byte, n)
	for i := range out {
		out[i] = bp(byte(asciiACK))
	}
	return out
}

func TestSend_HappyPathCRC(t *testing.T) {
	link := &fakeLink{}
	link.inbound = append(link.inbound, bp(byte(ymodemPOLL))) // Phase A: CRC mode
	link.inbound = append(link.inbound, ackSequence(1)...)    // info block ack
	link.inbound = append(link.inbound, bp(byte(ymodemPOLL))) // Phase C
	link.inbound = append(link.inbound, ackSequence(1)...)    // one data block ack
	link.inbound = append(link.inbound, ackSequence(1)...)    // EOT ack
	link.inbound = append(link.inbound, ackSequence(1)...)    // null block ack

	s := NewSender(link, link, RZSZDialect(), 10, time.Second)
	data := bytes.Repeat([]byte{0x42}, 10)
	err := s.Send(bytes.NewReader(data), FileInfo{Name: "fw.bin", Length: int64(len(data))})
	require.NoError(t, err)

	require.Len(t, link.outbound, 4) // info, data, EOT, null
	assert.Equal(t, byte(asciiSTX), link.outbound[0][0], "info block uses 1024-byte framing")
	assert.Equal(t, byte(0), link.outbound[0][1], "info block sequence is 0")
	assert.Equal(t, byte(asciiEOT), link.outbound[2][0])
	assert.Equal(t, byte(0), link.outbound[3][1], "null block sequence is 0")
}

func TestSend_ChecksumFallback(t *testing.T) {
	link := &fakeLink{}
	link.inbound = append(link.inbound, bp(byte(asciiNAK))) // Phase A: checksum mode
	link.inbound = append(link.inbound, ackSequence(1)...)
	link.inbound = append(link.inbound, bp(byte(asciiNAK))) // Phase C
	link.inbound = append(link.inbound, ackSequence(3)...)

	s := NewSender(link, link, RZSZDialect(), 10, time.Second)
	err := s.Send(bytes.NewReader(nil), FileInfo{Name: "empty.bin"})
	require.NoError(t, err)

	// info, EOT, null: zero-length stream sends no data packets.
	require.Len(t, link.outbound, 3)
	infoFrame := link.outbound[0]
	trailer := infoFrame[len(infoFrame)-1]
	assert.Equal(t, checksum8(infoFrame[3:len(infoFrame)-1]), trailer)
}

func TestSend_SingleNAKMidStreamRetransmits(t *testing.T) {
	link := &fakeLink{}
	link.inbound = append(link.inbound, bp(byte(ymodemPOLL)))
	link.inbound = append(link.inbound, ackSequence(1)...)
	link.inbound = append(link.inbound, bp(byte(ymodemPOLL)))
	link.inbound = append(link.inbound, bp(byte(asciiNAK))) // first data attempt rejected
	link.inbound = append(link.inbound, ackSequence(1)...)  // retransmit accepted
	link.inbound = append(link.inbound, ackSequence(1)...)  // EOT
	link.inbound = append(link.inbound, ackSequence(1)...)  // null

	s := NewSender(link, link, RZSZDialect(), 10, time.Second)
	err := s.Send(bytes.NewReader([]byte{1, 2, 3}), FileInfo{Name: "f", Length: 3})
	require.NoError(t, err)

	require.Len(t, link.outbound, 5) // info, data(1st), data(retry), EOT, null
	assert.Equal(t, link.outbound[1], link.outbound[2], "retransmitted frame is byte-identical")
}

func TestSend_RetryExhaustionDuringNegotiate(t *testing.T) {
	link := &fakeLink{}
	for i := 0; i < 6; i++ {
		link.inbound = append(link.inbound, nil) // all timeouts
	}

	s := NewSender(link, link, RZSZDialect(), 5, time.Millisecond)
	err := s.Send(bytes.NewReader([]byte{1}), FileInfo{Name: "f", Length: 1})
	assert.ErrorIs(t, err, ErrRetriesExhausted)
}

func TestSend_ReceiverCancelDuringDataPhase(t *testing.T) {
	link := &fakeLink{}
	link.inbound = append(link.inbound, bp(byte(ymodemPOLL)))
	link.inbound = append(link.inbound, ackSequence(1)...)
	link.inbound = append(link.inbound, bp(byte(ymodemPOLL)))
	link.inbound = append(link.inbound, bp(byte(asciiCAN)), bp(byte(asciiCAN)))

	s := NewSender(link, link, RZSZDialect(), 10, time.Second)
	err := s.Send(bytes.NewReader([]byte{1, 2, 3}), FileInfo{Name: "f", Length: 3})
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestSend_DeclinedAtPhaseA(t *testing.T) {
	link := &fakeLink{}
	link.inbound = append(link.inbound, bp(byte(asciiEOT)))

	s := NewSender(link, link, RZSZDialect(), 10, time.Second)
	err := s.Send(bytes.NewReader([]byte{1}), FileInfo{Name: "f", Length: 1})
	assert.ErrorIs(t, err, ErrDeclined)
}

func TestSend_SequenceWrapsModulo256(t *testing.T) {
	link := &fakeLink{}
	link.inbound = append(link.inbound, bp(byte(ymodemPOLL)))
	link.inbound = append(link.inbound, ackSequence(1)...)
	link.inbound = append(link.inbound, bp(byte(ymodemPOLL)))
	link.inbound = append(link.inbound, ackSequence(257)...) // 257 data packets
	link.inbound = append(link.inbound, ackSequence(1)...)   // EOT
	link.inbound = append(link.inbound, ackSequence(1)...)   // null

	dialect := RZSZDialect()
	dialect.Allow1K = false // 128-byte blocks keep the fixture small-ish
	data := bytes.Repeat([]byte{0xAA}, 128*257)

	s := NewSender(link, link, dialect, 10, time.Second)
	err := s.Send(bytes.NewReader(data), FileInfo{Name: "f", Length: int64(len(data))})
	require.NoError(t, err)

	dataFrames := link.outbound[1 : len(link.outbound)-2]
	require.Len(t, dataFrames, 257)
	assert.Equal(t, byte(1), dataFrames[0][1])
	assert.Equal(t, byte(255), dataFrames[254][1])
	assert.Equal(t, byte(0), dataFrames[255][1], "sequence wraps from 255 back to 0")
	assert.Equal(t, byte(1), dataFrames[256][1])
}

func TestSend_FinalShortBlockIsPaddedWith1A(t *testing.T) {
	link := &fakeLink{}
	link.inbound = append(link.inbound, bp(byte(ymodemPOLL)))
	link.inbound = append(link.inbound, ackSequence(1)...)
	link.inbound = append(link.inbound, bp(byte(ymodemPOLL)))
	link.inbound = append(link.inbound, ackSequence(1)...) // one short data block
	link.inbound = append(link.inbound, ackSequence(1)...)
	link.inbound = append(link.inbound, ackSequence(1)...)

	dialect := RZSZDialect()
	dialect.Allow1K = false
	data := []byte{1, 2, 3} // shorter than 128

	s := NewSender(link, link, dialect, 10, time.Second)
	err := s.Send(bytes.NewReader(data), FileInfo{Name: "f", Length: int64(len(data))})
	require.NoError(t, err)

	frame := link.outbound[1]
	payload := frame[3 : 3+128]
	assert.Equal(t, []byte{1, 2, 3}, payload[:3])
	for _, b := range payload[3:] {
		assert.Equal(t, asciiSUBPad, b)
	}
}

func TestNegotiate_CANCANCancelsBeforeInfo(t *testing.T) {
	link := &fakeLink{}
	link.inbound = append(link.inbound, bp(byte(asciiCAN)), bp(byte(asciiCAN)))

	s := NewSender(link, link, RZSZDialect(), 10, time.Second)
	_, err := s.negotiate()
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestNegotiate_ReadError(t *testing.T) {
	// ReadByte cannot itself return an error in fakeLink, so exercise the
	// wrapping path through a tiny adapter instead.
	boom := errors.New("boom")
	r := readerFunc(func(time.Duration) (byte, bool, error) { return 0, false, boom })
	s := NewSender(r, &fakeLink{}, RZSZDialect(), 3, time.Millisecond)
	_, err := s.negotiate()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

type readerFunc func(time.Duration) (byte, bool, error)

func (f readerFunc) ReadByte(timeout time.Duration) (byte, bool, error) { return f(timeout) }

func TestBuildFrame_ChoosesHeaderBySize(t *testing.T) {
	small := buildFrame(128, 1, make([]byte, 128), true)
	large := buildFrame(1024, 1, make([]byte, 1024), true)
	assert.Equal(t, byte(asciiSOH), small[0])
	assert.Equal(t, byte(asciiSTX), large[0])
}

func TestBuildFrame_SeqComplement(t *testing.T) {
	frame := buildFrame(128, 7, make([]byte, 128), false)
	assert.Equal(t, byte(7), frame[1])
	assert.Equal(t, byte(0xff-7), frame[2])
}

func TestPadPayload(t *testing.T) {
	out := padPayload([]byte{1, 2}, 5, 0x00)
	assert.Equal(t, []byte{1, 2, 0, 0, 0}, out)
}
