package bridge

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestForwardFrameResilience(t *testing.T) {
	b, _, session := newOnlineBridge(t)

	frames := [][]byte{
		[]byte(`not json`),
		{0xff, 0xfe, 0x80},               // Invalid UTF-8
		[]byte(`[1,2,3]`),                // Array, not object
		[]byte(`"scalar"`),               // Scalar
		[]byte(`null`),                   // JSON null
		[]byte(`{"mole":1,"hit":fal`),    // Truncated mid-write
		[]byte(``),                       // Blank line
		[]byte(`{"mole":7,"hit":false}`), // Finally a good one
	}
	for _, f := range frames {
		b.forwardFrame(f)
	}

	events := session.publishesTo("whac/dev-42/game_events")
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1 (malformed frames skipped)", len(events))
	}
	var event map[string]any
	if err := json.Unmarshal(events[0].payload, &event); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if event["mole"] != float64(7) {
		t.Errorf("wrong frame forwarded: %v", event)
	}
}

func TestForwardFramePreservesOrder(t *testing.T) {
	b, _, session := newOnlineBridge(t)

	for i := 1; i <= 5; i++ {
		frame, _ := json.Marshal(map[string]any{"seq": i})
		b.forwardFrame(frame)
	}

	events := session.publishesTo("whac/dev-42/game_events")
	if len(events) != 5 {
		t.Fatalf("published %d events, want 5", len(events))
	}
	for i, e := range events {
		var event map[string]any
		if err := json.Unmarshal(e.payload, &event); err != nil {
			t.Fatalf("payload %d not JSON: %v", i, err)
		}
		if event["seq"] != float64(i+1) {
			t.Errorf("event %d has seq %v, reordered", i, event["seq"])
		}
	}
}

func TestForwardFrameOverridesIdentityFields(t *testing.T) {
	b, _, session := newOnlineBridge(t)

	b.forwardFrame([]byte(`{"device_id":"spoofed","ts":1,"mole":2}`))

	events := session.publishesTo("whac/dev-42/game_events")
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	var event map[string]any
	if err := json.Unmarshal(events[0].payload, &event); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if event["device_id"] != "dev-42" {
		t.Errorf("device_id = %v, bridge identity must win", event["device_id"])
	}
	if event["ts"] == float64(1) {
		t.Error("device-supplied ts not replaced")
	}
}

func TestForwardFramePublishFailureIsNonFatal(t *testing.T) {
	b, _, session := newOnlineBridge(t)
	session.pubErr = errors.New("broker unavailable")

	// Must not panic or retry inline.
	b.forwardFrame([]byte(`{"mole":1}`))

	session.pubErr = nil
	b.forwardFrame([]byte(`{"mole":2}`))
	events := session.publishesTo("whac/dev-42/game_events")
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1 after broker recovery", len(events))
	}
}
