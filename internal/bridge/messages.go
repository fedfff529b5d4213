package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Device status values published on the state topic.
// These reflect the serial transport's health as last observed by the
// bridge, not the device's internal game state.
const (
	// StatusOnline means the bridge holds a working serial channel.
	StatusOnline = "online"

	// StatusOffline means the bridge shut down cleanly or the device was
	// physically removed. Also the last-will payload.
	StatusOffline = "offline"

	// StatusSerialError means the serial channel failed and could not be
	// recovered within the reconnect budget.
	StatusSerialError = "serial_error"
)

// broadcastID is the pseudo device segment for the shared command topic
// every bridge instance subscribes to.
const broadcastID = "all"

// Topics builds the MQTT topic names for one device under a namespace.
//
// Topic scheme:
//
//	<namespace>/<device_id>/game_events   device frames, enriched
//	<namespace>/<device_id>/state         status + heartbeat, LWT target
//	<namespace>/<device_id>/commands      per-device command bytes
//	<namespace>/all/commands              broadcast command bytes
type Topics struct {
	Namespace string
	DeviceID  string
}

// NewTopics creates the topic builder for a device.
// Valid only after the identify handshake has produced the device ID.
func NewTopics(namespace, deviceID string) Topics {
	return Topics{Namespace: namespace, DeviceID: deviceID}
}

// GameEvents returns the topic device frames are published to.
func (t Topics) GameEvents() string {
	return fmt.Sprintf("%s/%s/game_events", t.Namespace, t.DeviceID)
}

// State returns the status topic, also used as the last-will target.
func (t Topics) State() string {
	return fmt.Sprintf("%s/%s/state", t.Namespace, t.DeviceID)
}

// Commands returns the per-device command topic.
func (t Topics) Commands() string {
	return fmt.Sprintf("%s/%s/commands", t.Namespace, t.DeviceID)
}

// Broadcast returns the shared command topic for all devices.
func (t Topics) Broadcast() string {
	return fmt.Sprintf("%s/%s/commands", t.Namespace, broadcastID)
}

// EventsWildcard returns the subscription pattern matching every device's
// game_events topic. Used by broker-side consumers, not the bridge itself.
func EventsWildcard(namespace string) string {
	return namespace + "/+/game_events"
}

// StateWildcard returns the subscription pattern matching every device's
// state topic.
func StateWildcard(namespace string) string {
	return namespace + "/+/state"
}

// CommandTopic returns the command topic for a specific device.
// Used by broker-side consumers to address one bridge.
func CommandTopic(namespace, deviceID string) string {
	return NewTopics(namespace, deviceID).Commands()
}

// DeviceIDFromTopic extracts the device segment from a three-part topic
// (<namespace>/<device_id>/<channel>). Returns false for topics that do
// not match the scheme or carry the broadcast pseudo-ID.
func DeviceIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[1] == "" || parts[1] == broadcastID {
		return "", false
	}
	return parts[1], true
}

// StatusMessage is the payload published on the state topic.
type StatusMessage struct {
	// DeviceID is the identity obtained from the handshake.
	DeviceID string `json:"device_id"`

	// TS is wall-clock milliseconds since epoch at publish time.
	TS int64 `json:"ts"`

	// Status is one of StatusOnline, StatusOffline, StatusSerialError.
	Status string `json:"status"`
}

// ParseStatus decodes a state-topic payload.
func ParseStatus(payload []byte) (StatusMessage, error) {
	var msg StatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return StatusMessage{}, fmt.Errorf("parsing status payload: %w", err)
	}
	return msg, nil
}

// newStatusPayload builds the JSON for a status publish.
func newStatusPayload(deviceID, status string) []byte {
	payload, err := json.Marshal(StatusMessage{
		DeviceID: deviceID,
		TS:       nowMillis(),
		Status:   status,
	})
	if err != nil {
		// StatusMessage contains only marshalable fields.
		panic(fmt.Sprintf("marshaling status payload: %v", err))
	}
	return payload
}

// parseFrame decodes one device line as a JSON object.
//
// Returns an error for invalid UTF-8, malformed JSON, and valid JSON that
// is not an object (arrays, scalars). Callers log and skip; frame faults
// are never fatal.
func parseFrame(line []byte) (map[string]any, error) {
	if !utf8.Valid(line) {
		return nil, fmt.Errorf("frame is not valid UTF-8")
	}

	var event map[string]any
	if err := json.Unmarshal(line, &event); err != nil {
		return nil, fmt.Errorf("frame is not a JSON object: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("frame is JSON null")
	}
	return event, nil
}

// enrichEvent merges the device identity and a publish timestamp into a
// parsed frame and re-encodes it. Device-supplied fields with the same
// names are overwritten; the bridge's identity is authoritative.
func enrichEvent(event map[string]any, deviceID string) ([]byte, error) {
	event["device_id"] = deviceID
	event["ts"] = nowMillis()

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encoding enriched event: %w", err)
	}
	return payload, nil
}

// nowMillis returns wall-clock milliseconds since epoch.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
