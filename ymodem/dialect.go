package ymodem

// Historical rz/sz flag bits, kept for documentation and wire-format
// interop notes; the Go API uses the Dialect struct below instead of this
// bitmask.
const (
	flagUseLength byte = 0x20
	flagUseDate   byte = 0x10
	flagUseMode   byte = 0x08
	flagUseSerial byte = 0x04
	flagAllow1K   byte = 0x02
	flagAllowG    byte = 0x01
)

// Dialect selects which optional info-block fields a YMODEM batch carries
// and whether 1K data blocks are permitted. It mirrors the rz/sz flag byte
// documented in original_source/tools/uploader_ymodem.py, expressed as a
// record of booleans instead of a bitmask since only a handful of
// combinations ever occur in practice.
type Dialect struct {
	UseLength bool
	UseDate   bool
	UseMode   bool
	UseSerial bool
	Allow1K   bool
	AllowG    bool
}

// RZSZDialect returns the classic Unix rz/sz flag combination: length,
// date, and mode fields declared, 1K blocks allowed, YMODEM-g not
// negotiated. This is the dialect this uploader uses.
func RZSZDialect() Dialect {
	return Dialect{
		UseLength: true,
		UseDate:   true,
		UseMode:   true,
		Allow1K:   true,
	}
}

func (d Dialect) mask() byte {
	var m byte
	if d.UseLength {
		m |= flagUseLength
	}
	if d.UseDate {
		m |= flagUseDate
	}
	if d.UseMode {
		m |= flagUseMode
	}
	if d.UseSerial {
		m |= flagUseSerial
	}
	if d.Allow1K {
		m |= flagAllow1K
	}
	if d.AllowG {
		m |= flagAllowG
	}
	return m
}
