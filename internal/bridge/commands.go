package bridge

import "bytes"

// Command bytes accepted on the command topics. Each is written to the
// device verbatim except CmdProbe, which is bridge-local.
const (
	// CmdIdentify asks the device to emit an identify frame.
	CmdIdentify byte = 'I'

	// CmdPause toggles the device's pause state. The only command with a
	// bridge-local side effect: a successful write flips the pause flag.
	CmdPause byte = 'P'

	// CmdReset resets the current game.
	CmdReset byte = 'R'

	// CmdStart starts a game.
	CmdStart byte = 'S'

	// CmdDisconnect tells the device the bridge is detaching; the firmware
	// buffers events until the next identify.
	CmdDisconnect byte = 'D'

	// CmdProbe is the bridge-local liveness probe. It triggers an immediate
	// status publish and is never forwarded to the device.
	CmdProbe byte = 'H'
)

// deviceCommands is the set of bytes forwarded to the device.
// '1'..'8' select the game level.
var deviceCommands = map[byte]string{
	CmdIdentify:   "identify",
	CmdPause:      "pause",
	CmdReset:      "reset",
	CmdStart:      "start",
	CmdDisconnect: "disconnect",
	'1':           "level",
	'2':           "level",
	'3':           "level",
	'4':           "level",
	'5':           "level",
	'6':           "level",
	'7':           "level",
	'8':           "level",
}

// ParseCommand extracts the single command byte from a message payload.
// Surrounding whitespace is tolerated (dashboards tend to append newlines);
// anything else fails with ErrInvalidCommand.
func ParseCommand(payload []byte) (byte, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) != 1 {
		return 0, ErrInvalidCommand
	}

	cmd := trimmed[0]
	if cmd == CmdProbe {
		return cmd, nil
	}
	if _, ok := deviceCommands[cmd]; !ok {
		return 0, ErrInvalidCommand
	}
	return cmd, nil
}

// handleCommand is the subscription callback for both the per-device and
// broadcast command topics. It runs on the broker client's goroutine, so
// every fault is logged and swallowed here; nothing may crash the callback
// or leak into the controller goroutine.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	cmd, err := ParseCommand(payload)
	if err != nil {
		b.logWarn("ignoring invalid command",
			"topic", topic,
			"payload", string(payload))
		return nil
	}

	// The probe answers from the bridge itself. It must work even while
	// the serial side is down, so it never touches the transport.
	if cmd == CmdProbe {
		b.publishStatus(statusForState(b.State()))
		return nil
	}

	if err := b.writeCommand(cmd); err != nil {
		b.logError("command write failed", err,
			"command", deviceCommands[cmd],
			"topic", topic)
		return nil
	}

	b.logInfo("command forwarded",
		"command", deviceCommands[cmd],
		"byte", string(cmd),
		"topic", topic)
	return nil
}

// writeCommand sends one command byte to the device, serialized against
// cleanup writes from the controller goroutine. A successful pause write
// toggles the pause flag under the same lock.
func (b *Bridge) writeCommand(cmd byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.transport == nil {
		return ErrDeviceRemoved
	}
	if err := b.transport.Write([]byte{cmd}); err != nil {
		return err
	}
	if cmd == CmdPause {
		b.paused = !b.paused
	}
	return nil
}

// statusForState maps the bridge lifecycle state to the published device
// status vocabulary.
func statusForState(s State) string {
	switch s {
	case StateOnline:
		return StatusOnline
	case StateReconnecting:
		return StatusSerialError
	default:
		return StatusOffline
	}
}
