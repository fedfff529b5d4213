package serialport

import (
	"fmt"

	"go.bug.st/serial"
)

// ListPorts returns the serial port paths currently present on the system.
//
// The reconnect logic uses this to tell a transient fault (port still
// enumerated, device likely rebooting) from a physical unplug (port gone),
// which skips the retry budget entirely.
//
// Returns:
//   - []string: Port device paths, may be empty
//   - error: If the enumeration itself fails
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serialport: listing ports: %w", err)
	}
	return ports, nil
}
