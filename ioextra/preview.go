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

package ioextra

import (
	"bytes"
	"io"

	"github.com/sirupsen/logrus"
)

// IOPreview is a ReadWriteCloser which previews serial I/O in a readable manner
type IOPreview struct {
	wrapped    io.ReadWriteCloser
	log        logrus.FieldLogger
	inDisplay  bytes.Buffer
	outDisplay bytes.Buffer
	inDir      string
	outDir     string
	disabled   bool
	immediate  bool
}

// NewIOPreview returns a ReadWriteCloser that logs serial port traffic
// through log at debug level.
func NewIOPreview(wrapped io.ReadWriteCloser, log logrus.FieldLogger) *IOPreview {
	return &IOPreview{
		wrapped: wrapped,
		log:     log,
		inDir:   "in",
		outDir:  "out",
	}
}

// DisablePreview disables buffering and display of transmitted data.
func (preview *IOPreview) DisablePreview() {
	preview.disabled = true
}

// EnablePreview enables buffering and display of transmitted data.
func (preview *IOPreview) EnablePreview() {
	preview.disabled = false
}

// DisableLineBuffering disables internal buffering of complete lines.
//
// Buffering only affects the preview stream, not the real IO.
func (preview *IOPreview) DisableLineBuffering() {
	preview.immediate = true
}

// EnableLineBuffering enables internal buffering of complete lines.
//
// Buffering only affects the preview stream, not the real IO.
func (preview *IOPreview) EnableLineBuffering() {
	preview.immediate = false
}

func (preview *IOPreview) Read(p []byte) (n int, err error) {
	n, err = preview.wrapped.Read(p)
	if n > 0 && !preview.disabled {
		preview.inDisplay.Write(p[:n]) // buffer writes panic on failure
		preview.display(&preview.inDisplay, preview.inDir, preview.immediate)
	}
	return n, err
}

func (preview *IOPreview) Write(p []byte) (n int, err error) {
	n, err = preview.wrapped.Write(p)
	if n > 0 && !preview.disabled {
		preview.outDisplay.Write(p[:n]) // buffer writes panic on failure
		preview.display(&preview.outDisplay, preview.outDir, preview.immediate)
	}
	return n, err
}

// Close displays the remainder of the buffered communication, even if
// unterminated. It does not close the wrapped stream: callers close the
// underlying port themselves.
//
// Close implements io.Closer
func (preview *IOPreview) Close() error {
	preview.display(&preview.outDisplay, preview.outDir, true)
	preview.outDisplay.Reset()
	preview.display(&preview.inDisplay, preview.inDir, true)
	preview.inDisplay.Reset()
	return nil
}

func (preview *IOPreview) display(buf *bytes.Buffer, dir string, immediate bool) {
	if immediate {
		if buf.Len() == 0 {
			return
		}
		preview.log.WithField("dir", dir).Debugf("% #x", buf.Bytes())
		buf.Reset()
		return
	}
	var line []byte
	var err error
	for {
		line, err = buf.ReadBytes('\n')
		if err != nil {
			break
		}
		preview.log.WithField("dir", dir).Debugf("%q", line)
	}
	if len(line) > 0 {
		// In non-immediate mode buffer it for the next time.
		*buf = *bytes.NewBuffer(line)
	}
}
