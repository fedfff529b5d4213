package scoreboard

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// gameEvent is the subset of enriched frame fields the collector reads.
// Unknown fields pass through untouched; the firmware vocabulary grows
// without collector releases.
type gameEvent struct {
	Type       string   `json:"event_type"`
	Level      int      `json:"level"`
	Mole       int      `json:"mole"`
	Hit        bool     `json:"hit"`
	Score      int      `json:"score"`
	Win        flexBool `json:"win"`
	ReactionMs float64  `json:"reaction_ms"`
}

// flexBool accepts both a JSON bool and the firmware's quoted "true"/"false"
// on the session_end win flag.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.ToLower(bytes.Trim(data, `"`))) {
	case "true":
		*b = true
	case "false", "null", "":
		*b = false
	default:
		return fmt.Errorf("parsing bool from %s", data)
	}
	return nil
}

// parseEvent decodes one game_events payload.
func parseEvent(payload []byte) (gameEvent, error) {
	var event gameEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return gameEvent{}, fmt.Errorf("parsing game event: %w", err)
	}
	return event, nil
}
