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

package dfu

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/rakwireless/rui-fwupload/ymodem"
)

var (
	// ErrBootModeFailed carries the "device do not enter boot mode"
	// diagnostic. No code path in this package returns it: when the
	// boot-mode probe finds the device outside DFU mode, EnsureDFU goes
	// on to baud detection instead.
	ErrBootModeFailed = errors.New("dfu: device do not enter boot mode")

	// ErrBaudDetectFailed is returned when every candidate baud rate in
	// candidateBaudRates failed to elicit an application-mode response.
	ErrBaudDetectFailed = errors.New("dfu: detect baudrate fail, can not get the baudrate")

	// ErrDFUEntryFailed is returned when the device is known not to be
	// in DFU mode at the point the YMODEM hand-off is attempted.
	ErrDFUEntryFailed = errors.New("dfu: enter dfu mode fail")
)

// PortOpener opens a serial connection to the target device at the given
// baud rate. It is called once per candidate baud during detection and
// again whenever the coordinator needs to reopen the port at a known
// speed. Production callers wrap serialport.Open; tests wrap an
// in-memory fake.
type PortOpener func(baud int) (Port, error)

// previewToggle is implemented by *serialport.Adapter; ports that don't
// support preview toggling are left at their default.
type previewToggle interface {
	DisablePreview()
	EnablePreview()
}

// Coordinator drives a device from application mode into DFU mode and
// then hands the open port to a ymodem.Sender.
type Coordinator struct {
	open    PortOpener
	clock   clockwork.Clock
	log     logrus.FieldLogger
	retry   int
	timeout time.Duration

	bootMode bool
}

// NewCoordinator returns a Coordinator that opens ports via open, using
// the real wall clock and the logrus standard logger until overridden with
// WithClock/WithLogger.
func NewCoordinator(open PortOpener) *Coordinator {
	return &Coordinator{
		open:    open,
		clock:   clockwork.NewRealClock(),
		log:     logrus.StandardLogger(),
		retry:   30,
		timeout: 10 * time.Second,
	}
}

// WithClock overrides the clock used for handshake sleeps. Tests pass a
// clockwork.NewFakeClock() to avoid real delays.
func (c *Coordinator) WithClock(clk clockwork.Clock) *Coordinator {
	c.clock = clk
	return c
}

// WithLogger overrides the structured logger used for diagnostics.
func (c *Coordinator) WithLogger(log logrus.FieldLogger) *Coordinator {
	c.log = log
	return c
}

// WithRetryBudget overrides the YMODEM per-phase retry budget (default 30).
func (c *Coordinator) WithRetryBudget(retry int) *Coordinator {
	c.retry = retry
	return c
}

// EnsureDFU checks whether the device is already in DFU mode and, if
// not, walks candidateBaudRates until it finds the device's
// application-mode speed and commands it into DFU.
func (c *Coordinator) EnsureDFU() error {
	probePort, err := c.open(defaultBaud)
	if err != nil {
		return fmt.Errorf("dfu: open for boot-mode probe: %w", err)
	}
	inDFU, perr := probeBootMode(probePort, c.clock)
	closeErr := probePort.Close()
	if perr != nil {
		return perr
	}
	if closeErr != nil {
		c.log.WithError(closeErr).Warn("error closing probe port")
	}
	if inDFU {
		c.log.Info("device is already in DFU mode")
		c.bootMode = true
		return nil
	}
	c.log.Info("device is not in boot mode, starting baud detection")
	return c.detectBaudAndBoot()
}

func (c *Coordinator) detectBaudAndBoot() error {
	for _, baud := range candidateBaudRates {
		c.log.WithField("baud", baud).Debug("trying baud rate")
		if err := c.tryOneBaud(baud); err != nil {
			return err
		}
		if c.bootMode {
			return nil
		}
	}
	return ErrBaudDetectFailed
}

// tryOneBaud opens the port at baud, checks for an application-mode
// response, and on success confirms with askOK and issues at+boot. It
// sets c.bootMode and returns nil on success; on a candidate that simply
// didn't answer it returns nil with c.bootMode left false so the caller
// continues to the next candidate.
func (c *Coordinator) tryOneBaud(baud int) error {
	p, err := c.open(baud)
	if err != nil {
		return fmt.Errorf("dfu: open at %d baud: %w", baud, err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			c.log.WithError(err).Warn("error closing baud probe port")
		}
	}()

	responded, err := tryBaud(p, c.clock)
	if err != nil {
		return err
	}
	if !responded {
		return nil
	}
	confirmed, err := askOK(p, c.clock)
	if err != nil {
		return err
	}
	if !confirmed {
		return nil
	}
	c.log.WithField("baud", baud).Info("entering boot mode")
	if _, err := p.Write([]byte("at+boot\r\n")); err != nil {
		return fmt.Errorf("dfu: write at+boot: %w", err)
	}
	c.clock.Sleep(afterBootWait)
	c.bootMode = true
	return nil
}

// SendFirmware hands stream off to a ymodem.Sender once the device is
// confirmed in DFU mode. EnsureDFU must have been called first and must
// have left the device in DFU mode, or this returns ErrDFUEntryFailed.
func (c *Coordinator) SendFirmware(stream io.Reader, info ymodem.FileInfo, observer ymodem.Observer) error {
	if !c.bootMode {
		return ErrDFUEntryFailed
	}
	p, err := c.open(defaultBaud)
	if err != nil {
		return fmt.Errorf("dfu: open for firmware transfer: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			c.log.WithError(err).Warn("error closing transfer port")
		}
	}()

	if _, err := p.Write([]byte("at+update\r\n")); err != nil {
		return fmt.Errorf("dfu: write at+update: %w", err)
	}
	if _, err := drain(p, drainByteTimeout); err != nil {
		return err
	}
	c.clock.Sleep(afterUpdateWait)

	// Per-packet traffic logging is too noisy to be useful across an
	// entire firmware image; the handshake above still gets full preview.
	if toggle, ok := p.(previewToggle); ok {
		toggle.DisablePreview()
	}

	sender := ymodem.NewSender(p, p, ymodem.RZSZDialect(), c.retry, c.timeout)
	if observer != nil {
		sender = sender.WithObserver(observer)
	}
	return sender.Send(stream, info)
}
