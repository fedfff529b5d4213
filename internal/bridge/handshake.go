package bridge

import (
	"fmt"
	"time"
)

// identifyEventType marks a frame as the response to CmdIdentify.
const identifyEventType = "identify"

// identify performs the one-time handshake that yields the device identity.
//
// It writes a single identify byte, then reads frames until one parses as
// a JSON object with event_type "identify" and a non-empty device_id.
// Unrelated or malformed frames inside the window are skipped and do not
// extend the budget.
//
// No publish happens before this returns: topic names cannot be built
// without the identity.
//
// Parameters:
//   - ch: Open transport channel
//   - timeout: Total handshake budget
//
// Returns:
//   - string: The device identity, stable for the process lifetime
//   - error: ErrIdentifyTimeout if the budget elapses, ErrHandshakeFailed
//     on a transport fault. Both are fatal to startup.
func identify(ch Transport, timeout time.Duration) (string, error) {
	if err := ch.Write([]byte{CmdIdentify}); err != nil {
		return "", fmt.Errorf("%w: sending identify: %w", ErrHandshakeFailed, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		line, err := ch.ReadLine()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
		}
		if line == nil {
			continue
		}

		frame, err := parseFrame(line)
		if err != nil {
			continue
		}
		if frame["event_type"] != identifyEventType {
			continue
		}

		id, ok := frame["device_id"].(string)
		if !ok || id == "" {
			continue
		}
		return id, nil
	}

	return "", ErrIdentifyTimeout
}
