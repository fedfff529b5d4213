package scoreboard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whaclab/whac-bridge/internal/bridge"
)

// maxPastSessions caps the per-device session history kept in memory.
// Older sessions remain queryable through the store.
const maxPastSessions = 5

// Game event types emitted by the device firmware.
const (
	eventSessionStart = "session_start"
	eventPopResult    = "pop_result"
	eventLvlComplete  = "lvl_complete"
	eventSessionEnd   = "session_end"
)

// Session is one game session on one device.
type Session struct {
	ID            string  `json:"id"`
	DeviceID      string  `json:"device_id"`
	Level         int     `json:"level"`
	Score         int     `json:"score"`
	Hits          int     `json:"hits"`
	Misses        int     `json:"misses"`
	Won           bool    `json:"won"`
	AvgReactionMs float64 `json:"avg_reaction_ms"`
	StartedAt     int64   `json:"started_at"`
	EndedAt       int64   `json:"ended_at,omitempty"`

	// Running reaction sums, not serialized.
	reactionSum   float64
	reactionCount int
}

// Device is a bridge known to the collector, with its live session and
// recent history.
type Device struct {
	DeviceID string `json:"device_id"`

	// Status is the last value seen on the device's state topic.
	Status string `json:"status"`

	// LastSeen is when any message last arrived for this device (ms).
	LastSeen int64 `json:"last_seen"`

	// Stale is set when an "online" device has been silent longer than
	// the stale threshold. The bridge heartbeat makes silence meaningful.
	Stale bool `json:"stale"`

	CurrentSession *Session  `json:"current_session,omitempty"`
	PastSessions   []Session `json:"past_sessions"`
}

// SessionStore persists finished sessions.
// Satisfied by *Repository.
type SessionStore interface {
	SaveSession(ctx context.Context, s Session) error
}

// SeriesWriter records per-pop and per-session points in a time-series
// database. Satisfied by *influxdb.Client. Optional, may be nil.
type SeriesWriter interface {
	WritePopResult(deviceID string, mole int, hit bool, reactionMs float64)
	WriteSessionScore(deviceID string, level, score, hits, misses int)
	WriteDeviceStatus(deviceID, status string)
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Tracker maintains the device registry from the MQTT event and state
// streams. It is the lock-guarded owner of all live device state; HTTP
// handlers read snapshots, never the live maps.
type Tracker struct {
	mu      sync.RWMutex
	devices map[string]*Device

	store      SessionStore
	series     SeriesWriter
	staleAfter time.Duration

	logger   Logger
	loggerMu sync.RWMutex
}

// TrackerOptions holds configuration for creating a tracker.
type TrackerOptions struct {
	// Store persists finished sessions. Required.
	Store SessionStore

	// Series is the optional time-series writer. May be nil.
	Series SeriesWriter

	// StaleAfter is the silence threshold before an online device is
	// reported stale.
	StaleAfter time.Duration

	// Logger is optional structured logging.
	Logger Logger
}

// NewTracker creates an empty tracker.
func NewTracker(opts TrackerOptions) *Tracker {
	return &Tracker{
		devices:    make(map[string]*Device),
		store:      opts.Store,
		series:     opts.Series,
		staleAfter: opts.StaleAfter,
		logger:     opts.Logger,
	}
}

// HandleEvent is the subscription callback for the game_events wildcard.
// Malformed payloads and unknown event types update the device's last-seen
// mark and are otherwise ignored; nothing here may fail the subscription.
func (t *Tracker) HandleEvent(topic string, payload []byte) error {
	deviceID, ok := bridge.DeviceIDFromTopic(topic)
	if !ok {
		t.logWarn("event on unexpected topic", "topic", topic)
		return nil
	}

	event, err := parseEvent(payload)
	if err != nil {
		t.logWarn("dropping malformed event", "device_id", deviceID, "error", err)
		return nil
	}

	t.mu.Lock()
	dev := t.deviceLocked(deviceID)
	dev.LastSeen = nowMillis()

	var finished *Session
	switch event.Type {
	case eventSessionStart:
		dev.CurrentSession = &Session{
			ID:        uuid.NewString(),
			DeviceID:  deviceID,
			Level:     event.Level,
			StartedAt: nowMillis(),
		}
		t.logInfo("session started", "device_id", deviceID, "level", event.Level)

	case eventPopResult:
		if s := dev.CurrentSession; s != nil {
			if event.Hit {
				s.Hits++
			} else {
				s.Misses++
			}
			if event.ReactionMs > 0 {
				s.reactionSum += event.ReactionMs
				s.reactionCount++
			}
		}

	case eventLvlComplete:
		if s := dev.CurrentSession; s != nil {
			if event.Level > 0 {
				s.Level = event.Level
			}
			if event.Score > 0 {
				s.Score = event.Score
			}
		}

	case eventSessionEnd:
		if s := dev.CurrentSession; s != nil {
			if event.Score > 0 {
				s.Score = event.Score
			}
			s.Won = bool(event.Win)
			s.EndedAt = nowMillis()
			if s.reactionCount > 0 {
				s.AvgReactionMs = s.reactionSum / float64(s.reactionCount)
			}

			dev.PastSessions = append(dev.PastSessions, *s)
			if len(dev.PastSessions) > maxPastSessions {
				dev.PastSessions = dev.PastSessions[len(dev.PastSessions)-maxPastSessions:]
			}
			finished = s
			dev.CurrentSession = nil
		}

	default:
		// Identify frames and future event types: presence only.
	}
	t.mu.Unlock()

	// Slow sinks run outside the registry lock.
	if event.Type == eventPopResult {
		t.logDebug("pop result", "device_id", deviceID, "mole", event.Mole, "hit", event.Hit)
		if t.series != nil {
			t.series.WritePopResult(deviceID, event.Mole, event.Hit, event.ReactionMs)
		}
	}
	if finished != nil {
		t.persistSession(*finished)
	}
	return nil
}

// HandleStatus is the subscription callback for the state wildcard.
func (t *Tracker) HandleStatus(topic string, payload []byte) error {
	deviceID, ok := bridge.DeviceIDFromTopic(topic)
	if !ok {
		t.logWarn("status on unexpected topic", "topic", topic)
		return nil
	}

	msg, err := bridge.ParseStatus(payload)
	if err != nil {
		t.logWarn("dropping malformed status", "device_id", deviceID, "error", err)
		return nil
	}

	t.mu.Lock()
	dev := t.deviceLocked(deviceID)
	changed := dev.Status != msg.Status
	dev.Status = msg.Status
	dev.LastSeen = nowMillis()
	t.mu.Unlock()

	if changed {
		t.logInfo("device status changed", "device_id", deviceID, "status", msg.Status)
		if t.series != nil {
			t.series.WriteDeviceStatus(deviceID, msg.Status)
		}
	}
	return nil
}

// persistSession writes a finished session to the store and time series.
func (t *Tracker) persistSession(s Session) {
	if t.series != nil {
		t.series.WriteSessionScore(s.DeviceID, s.Level, s.Score, s.Hits, s.Misses)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.store.SaveSession(ctx, s); err != nil {
		t.logError("persisting session failed", err,
			"device_id", s.DeviceID, "session_id", s.ID)
		return
	}
	t.logInfo("session recorded",
		"device_id", s.DeviceID,
		"session_id", s.ID,
		"score", s.Score)
}

// Devices returns a snapshot of every known device, with staleness
// computed against the silence threshold.
func (t *Tracker) Devices() []Device {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := nowMillis() - t.staleAfter.Milliseconds()
	out := make([]Device, 0, len(t.devices))
	for _, dev := range t.devices {
		snapshot := *dev
		if dev.CurrentSession != nil {
			s := *dev.CurrentSession
			snapshot.CurrentSession = &s
		}
		snapshot.PastSessions = append([]Session(nil), dev.PastSessions...)
		snapshot.Stale = snapshot.Status == bridge.StatusOnline && snapshot.LastSeen < cutoff
		out = append(out, snapshot)
	}
	return out
}

// Device returns the snapshot for one device.
func (t *Tracker) Device(deviceID string) (Device, bool) {
	for _, dev := range t.Devices() {
		if dev.DeviceID == deviceID {
			return dev, true
		}
	}
	return Device{}, false
}

// deviceLocked returns the live entry for a device, creating it on first
// sight. Caller holds mu.
func (t *Tracker) deviceLocked(deviceID string) *Device {
	dev, ok := t.devices[deviceID]
	if !ok {
		dev = &Device{DeviceID: deviceID, PastSessions: []Session{}}
		t.devices[deviceID] = dev
		t.logInfo("device discovered", "device_id", deviceID)
	}
	return dev
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// logDebug logs a debug message if a logger is set.
func (t *Tracker) logDebug(msg string, keysAndValues ...any) {
	t.loggerMu.RLock()
	logger := t.logger
	t.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is set.
func (t *Tracker) logInfo(msg string, keysAndValues ...any) {
	t.loggerMu.RLock()
	logger := t.logger
	t.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning message if a logger is set.
func (t *Tracker) logWarn(msg string, keysAndValues ...any) {
	t.loggerMu.RLock()
	logger := t.logger
	t.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is set.
func (t *Tracker) logError(msg string, err error, keysAndValues ...any) {
	t.loggerMu.RLock()
	logger := t.logger
	t.loggerMu.RUnlock()

	if logger != nil {
		args := append([]any{"error", err}, keysAndValues...)
		logger.Error(msg, args...)
	}
}
