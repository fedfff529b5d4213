// Package scoreboard is the collector's domain layer: it turns the MQTT
// event and state streams from every bridge into a live device registry,
// persisted game sessions, and an HTTP API.
//
// This package manages:
//   - A lock-guarded device registry fed by the game_events and state
//     wildcard subscriptions
//   - Session lifecycle tracking (session_start, pop_result, lvl_complete,
//     session_end) with a short in-memory history per device
//   - Persistence of finished sessions to SQLite and optional time-series
//     writes to InfluxDB
//   - The HTTP API: device registry, per-device sessions, leaderboard,
//     stats, dependency health, and an operator command relay
//
// # Architecture
//
//	Bridges -> MQTT -> Tracker -> Repository (SQLite)
//	                          \-> SeriesWriter (InfluxDB, optional)
//	         Dashboard -> Server -> Tracker / Repository / MQTT commands
//
// The Tracker owns all live state behind one mutex; HTTP handlers and the
// MQTT callbacks never share anything else. Everything the collector knows
// arrives through the broker, so it can run anywhere with broker access.
package scoreboard
