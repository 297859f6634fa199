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

// Package serialport adapts a physical serial device to the narrow
// read/write capability the ymodem and dfu packages require.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/rakwireless/rui-fwupload/ioextra"
)

// serialPort is the subset of go.bug.st/serial.Port this package needs.
// go.bug.st/serial.Port satisfies it structurally; tests use a fake.
type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Adapter wraps an open serial port with timed reads, EINTR-resilient
// I/O, traffic preview logging, and the blocking write-to-completion
// semantics the protocol core relies on.
type Adapter struct {
	port    serialPort
	wrapped io.ReadWriteCloser
	preview *ioextra.IOPreview
}

// Open opens name at baud with 8-N-1 framing and wraps it for use by the
// ymodem and dfu packages. Traffic is logged through logrus' standard
// logger at debug level until DisablePreview is called.
func Open(name string, baud int) (*Adapter, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", name, err)
	}
	return newAdapter(port, logrus.StandardLogger()), nil
}

func newAdapter(port serialPort, log logrus.FieldLogger) *Adapter {
	eintr := ioextra.NewRestartingReadWriteCloser(port)
	preview := ioextra.NewIOPreview(eintr, log)
	return &Adapter{
		port:    port,
		wrapped: preview,
		preview: preview,
	}
}

// DisablePreview stops traffic logging, typically around the bulk of a
// YMODEM transfer where per-packet logging is too noisy to be useful.
func (a *Adapter) DisablePreview() {
	a.preview.DisablePreview()
}

// EnablePreview resumes traffic logging.
func (a *Adapter) EnablePreview() {
	a.preview.EnablePreview()
}

// ReadByte blocks up to timeout for a single byte. ok is false and err is
// nil when the timeout elapsed without data arriving.
func (a *Adapter) ReadByte(timeout time.Duration) (b byte, ok bool, err error) {
	buf, ok, err := a.ReadExact(1, timeout)
	if err != nil || !ok {
		return 0, ok, err
	}
	return buf[0], true, nil
}

// ReadExact blocks up to timeout for exactly n bytes. ok is false when
// fewer than n bytes arrived before the timeout; this is reported as an
// absence, not an error, per the adapter's read contract.
func (a *Adapter) ReadExact(n int, timeout time.Duration) ([]byte, bool, error) {
	if err := a.port.SetReadTimeout(timeout); err != nil {
		return nil, false, fmt.Errorf("serialport: set read timeout: %w", err)
	}
	buf := make([]byte, n)
	got := 0
	for got < n {
		k, err := a.wrapped.Read(buf[got:])
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, false, fmt.Errorf("serialport: read: %w", err)
		}
		if k == 0 {
			return nil, false, nil
		}
		got += k
	}
	return buf, true, nil
}

// Write blocks until all of p is written, retrying short writes.
func (a *Adapter) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := a.wrapped.Write(p[total:])
		if err != nil {
			return total, fmt.Errorf("serialport: write: %w", err)
		}
		total += n
	}
	return total, nil
}

// FlushInput discards any buffered, unread input.
func (a *Adapter) FlushInput() error {
	if err := a.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("serialport: flush input: %w", err)
	}
	return nil
}

// FlushOutput discards any buffered, unwritten output.
func (a *Adapter) FlushOutput() error {
	if err := a.port.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("serialport: flush output: %w", err)
	}
	return nil
}

// Close flushes any buffered preview output and closes the underlying
// port.
func (a *Adapter) Close() error {
	_ = a.preview.Close() // always returns nil; flushes remaining trace lines
	return a.port.Close()
}
