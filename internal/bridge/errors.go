package bridge

import "errors"

// Domain-specific errors for bridge operation.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrIdentifyTimeout is returned when no identify response arrives
	// within the handshake budget. Fatal: topics cannot be built without
	// a device identity.
	ErrIdentifyTimeout = errors.New("bridge: identify handshake timed out")

	// ErrHandshakeFailed is returned when the handshake fails for a reason
	// other than timeout (transport fault during the identify exchange).
	ErrHandshakeFailed = errors.New("bridge: identify handshake failed")

	// ErrDeviceRemoved is returned when a serial fault coincides with the
	// port disappearing from OS enumeration. No reconnect is attempted.
	ErrDeviceRemoved = errors.New("bridge: device no longer enumerated")

	// ErrReconnectTimeout is returned when the port could not be reopened
	// within the reconnect budget.
	ErrReconnectTimeout = errors.New("bridge: reconnect budget exhausted")

	// ErrInvalidCommand is returned for command payloads outside the
	// recognized single-byte command set.
	ErrInvalidCommand = errors.New("bridge: unrecognized command")
)
