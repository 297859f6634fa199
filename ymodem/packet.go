package ymodem

import (
	"bytes"
	"fmt"
	"time"
)

// FileInfo is the immutable descriptor of the image being sent.
type FileInfo struct {
	Name    string
	Length  int64
	ModTime time.Time
	Mode    uint32
	Serial  string
}

// padPayload returns data right-padded with pad up to size. data must not
// be longer than size.
func padPayload(data []byte, size int, pad byte) []byte {
	out := make([]byte, size)
	copy(out, data)
	for i := len(data); i < size; i++ {
		out[i] = pad
	}
	return out
}

// buildFrame constructs header||seq||complement||payload||trailer. payload
// must already be exactly size bytes (padded by the caller).
func buildFrame(size int, seq uint8, payload []byte, crcMode bool) []byte {
	header := byte(asciiSOH)
	if size == 1024 {
		header = byte(asciiSTX)
	}
	frame := make([]byte, 0, size+5)
	frame = append(frame, header, seq, 0xff-seq)
	frame = append(frame, payload...)
	if crcMode {
		crc := crc16(frame[3:])
		frame = append(frame, byte(crc>>8), byte(crc))
	} else {
		frame = append(frame, checksum8(frame[3:]))
	}
	return frame
}

// buildInfoPayload lays out the info block: name, a 0x00 separator, the
// length if the dialect sets UseLength, then the date/mode/serial fields
// the dialect sets, only when emitOptionalFields is true. The uploader's
// dialect sets UseDate/UseMode even though Phase B never emits them by
// default — see Sender.WithOptionalFieldEmission.
func buildInfoPayload(d Dialect, info FileInfo, size int, emitOptionalFields bool) []byte {
	var buf bytes.Buffer
	buf.WriteString(info.Name)
	buf.WriteByte(0x00)
	if d.UseLength {
		fmt.Fprintf(&buf, "%d", info.Length)
	}
	if emitOptionalFields {
		if d.UseDate {
			fmt.Fprintf(&buf, " %o", info.ModTime.Unix())
		}
		if d.UseMode {
			fmt.Fprintf(&buf, " %o", info.Mode)
		}
		if d.UseSerial {
			fmt.Fprintf(&buf, " %s", info.Serial)
		}
	}
	return padPayload(buf.Bytes(), size, 0x00)
}
