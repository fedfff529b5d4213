// Package bridge relays traffic between a whac device on a serial port and
// an MQTT broker, for exactly one physical device per process.
//
// This package manages:
//   - The identify handshake that yields the device identity
//   - Forwarding device frames to the game_events topic, enriched with
//     device_id and a millisecond timestamp
//   - Forwarding single-byte commands from the command topics to the device
//   - Heartbeat status publishes and a bridge-local liveness probe
//   - Bounded serial reconnection with unplug detection
//
// # Lifecycle
//
// The controller walks a five-state machine:
//
//	Disconnected -> Identifying -> Online -> (Reconnecting <-> Online) -> Terminated
//
// The broker session is created only after the handshake because topic
// names, the client ID, and the last-will all carry the device identity.
// Terminated is absorbing; Run returns and no further I/O happens.
//
// # Concurrency
//
// Two execution contexts exist: the controller goroutine (Run, the read
// loop, the state machine) and the broker client's callback goroutine
// (handleCommand). They share exactly two pieces of state, the transport
// handle and the pause flag, both guarded by one mutex. Frames are
// published in the order they are read; no ordering holds across the two
// directions.
package bridge
