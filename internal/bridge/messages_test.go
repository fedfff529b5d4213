package bridge

import (
	"encoding/json"
	"testing"
)

func TestTopics(t *testing.T) {
	topics := NewTopics("whac", "dev-42")

	tests := []struct {
		got  string
		want string
	}{
		{topics.GameEvents(), "whac/dev-42/game_events"},
		{topics.State(), "whac/dev-42/state"},
		{topics.Commands(), "whac/dev-42/commands"},
		{topics.Broadcast(), "whac/all/commands"},
		{EventsWildcard("whac"), "whac/+/game_events"},
		{StateWildcard("whac"), "whac/+/state"},
		{CommandTopic("whac", "dev-42"), "whac/dev-42/commands"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestDeviceIDFromTopic(t *testing.T) {
	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"whac/dev-42/game_events", "dev-42", true},
		{"whac/dev-42/state", "dev-42", true},
		{"whac/all/commands", "", false},
		{"whac/game_events", "", false},
		{"whac//state", "", false},
		{"a/b/c/d", "", false},
	}
	for _, tt := range tests {
		id, ok := DeviceIDFromTopic(tt.topic)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("DeviceIDFromTopic(%q) = (%q, %v), want (%q, %v)",
				tt.topic, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestStatusPayloadRoundTrip(t *testing.T) {
	payload := newStatusPayload("dev-42", StatusSerialError)

	msg, err := ParseStatus(payload)
	if err != nil {
		t.Fatalf("ParseStatus() error = %v", err)
	}
	if msg.DeviceID != "dev-42" || msg.Status != StatusSerialError {
		t.Errorf("status = %+v", msg)
	}
	if msg.TS <= 0 {
		t.Errorf("ts = %d, want positive millisecond timestamp", msg.TS)
	}

	// Wire field names are part of the contract with consumers.
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"device_id", "ts", "status"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("payload missing %q field", field)
		}
	}
}

func TestParseFrame(t *testing.T) {
	frame, err := parseFrame([]byte(`{"event_type":"pop_result","mole":3}`))
	if err != nil {
		t.Fatalf("parseFrame() error = %v", err)
	}
	if frame["event_type"] != "pop_result" {
		t.Errorf("frame = %v", frame)
	}

	for _, bad := range []string{`[1]`, `42`, `"x"`, `null`, `{"a":`, ``} {
		if _, err := parseFrame([]byte(bad)); err == nil {
			t.Errorf("parseFrame(%q) accepted, want error", bad)
		}
	}
	if _, err := parseFrame([]byte{0xff, '{', '}'}); err == nil {
		t.Error("parseFrame accepted invalid UTF-8")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateIdentifying, "identifying"},
		{StateOnline, "online"},
		{StateReconnecting, "reconnecting"},
		{StateTerminated, "terminated"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
