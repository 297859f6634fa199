package ymodem

import "errors"

var (
	// ErrCancelled is returned when two consecutive CAN bytes were
	// observed from the receiver at any wait point.
	ErrCancelled = errors.New("ymodem: transfer cancelled by receiver")

	// ErrDeclined is returned when the receiver sends EOT instead of a
	// mode request at the start of a batch.
	ErrDeclined = errors.New("ymodem: receiver declined transfer")

	// ErrRetriesExhausted is returned when a phase's error counter
	// exceeded its retry budget.
	ErrRetriesExhausted = errors.New("ymodem: retry budget exhausted")
)
