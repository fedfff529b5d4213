package serialport

import "errors"

// Domain-specific errors for serial transport operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrOpenFailed is returned when the port cannot be opened or configured.
	ErrOpenFailed = errors.New("serialport: open failed")

	// ErrReadFailed is returned when a read fails mid-session. This means the
	// transport is broken, not that no data was available.
	ErrReadFailed = errors.New("serialport: read failed")

	// ErrWriteFailed is returned when a write fails; the bytes are dropped.
	ErrWriteFailed = errors.New("serialport: write failed")
)
