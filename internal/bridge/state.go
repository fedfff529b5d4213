package bridge

// State is the bridge lifecycle state.
//
// Exactly one instance exists per process, owned by the controller goroutine.
// The command handler reads it to answer liveness probes; no other component
// mutates it.
type State int

const (
	// StateDisconnected is the initial state before the serial port opens.
	StateDisconnected State = iota

	// StateIdentifying means the port is open and the identify handshake is
	// in progress. No broker session exists yet.
	StateIdentifying

	// StateOnline is normal operation: frames forwarded, commands accepted,
	// heartbeats published.
	StateOnline

	// StateReconnecting means a serial read failed and the controller is
	// retrying the port within its timeout budget. The broker session stays
	// up throughout.
	StateReconnecting

	// StateTerminated is absorbing; no further I/O is attempted.
	StateTerminated
)

// String returns the lowercase state name for logging.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateIdentifying:
		return "identifying"
	case StateOnline:
		return "online"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
