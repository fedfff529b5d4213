package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePopResult records one mole pop outcome.
//
// The write is non-blocking; points are batched and sent asynchronously.
// A zero or negative reaction time (miss, no reaction measured) omits the
// reaction_ms field so dashboards can average over genuine reactions only.
//
// Parameters:
//   - deviceID: Bridge device identity from the event
//   - mole: Mole index reported by the firmware
//   - hit: Whether the player hit the mole
//   - reactionMs: Reaction time in milliseconds, <= 0 when absent
func (c *Client) WritePopResult(deviceID string, mole int, hit bool, reactionMs float64) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"hit":  hit,
		"mole": mole,
	}
	if reactionMs > 0 {
		fields["reaction_ms"] = reactionMs
	}

	point := write.NewPoint(
		"pop_results",
		map[string]string{
			"device_id": deviceID,
		},
		fields,
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// WriteSessionScore records a finished session's score.
//
// Parameters:
//   - deviceID: Bridge device identity
//   - level: Level the session was played at
//   - score: Final score
//   - hits: Successful pops
//   - misses: Missed pops
func (c *Client) WriteSessionScore(deviceID string, level, score, hits, misses int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sessions",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"level":  level,
			"score":  score,
			"hits":   hits,
			"misses": misses,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// WriteDeviceStatus records a bridge status transition as a point, giving
// dashboards an uptime series per device.
//
// Parameters:
//   - deviceID: Bridge device identity
//   - status: "online", "offline", or "serial_error"
func (c *Client) WriteDeviceStatus(deviceID, status string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_status",
		map[string]string{
			"device_id": deviceID,
			"status":    status,
		},
		map[string]interface{}{
			"value": 1,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}
