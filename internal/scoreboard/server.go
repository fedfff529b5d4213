package scoreboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/whaclab/whac-bridge/internal/bridge"
)

// maxCommandBody bounds the POST /command request body. Commands are one
// byte; anything bigger is garbage.
const maxCommandBody = 64

// LeaderboardStore serves the read-side queries of the HTTP API.
// Satisfied by *Repository.
type LeaderboardStore interface {
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	Stats(ctx context.Context) (StoreStats, error)
	SessionsForDevice(ctx context.Context, deviceID string, limit int) ([]Session, error)
}

// CommandPublisher sends command bytes toward bridges over MQTT.
// Satisfied by an adapter over *mqtt.Client.
type CommandPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// HealthChecker reports the liveness of one backing dependency.
// Satisfied by the mqtt, database, and influxdb clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ServerOptions holds configuration for creating the HTTP server.
type ServerOptions struct {
	// Addr is the listen address (host:port). Required.
	Addr string

	// Tracker provides live device snapshots. Required.
	Tracker *Tracker

	// Store serves leaderboard and stats queries. Required.
	Store LeaderboardStore

	// Publisher relays operator commands to bridges. Required.
	Publisher CommandPublisher

	// Namespace is the MQTT topic namespace commands are published under.
	Namespace string

	// Health maps dependency names to their liveness checks, served on
	// GET /health. Optional.
	Health map[string]HealthChecker

	// QoS is the delivery level for command publishes.
	QoS byte

	// ReadTimeout, WriteTimeout, IdleTimeout configure the http.Server.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Logger is optional structured logging.
	Logger Logger
}

// Server is the collector's HTTP API: device registry, leaderboard, and
// an operator command relay.
type Server struct {
	opts   ServerOptions
	server *http.Server
}

// NewServer creates the HTTP server with its routes registered.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if opts.Tracker == nil {
		return nil, fmt.Errorf("tracker is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("command publisher is required")
	}

	s := &Server{opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /devices", s.handleDevices)
	mux.HandleFunc("GET /devices/{device_id}/sessions", s.handleDeviceSessions)
	mux.HandleFunc("GET /leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("POST /command/{device_id}", s.handleCommand)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      mux,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s, nil
}

// Start runs the server until Shutdown is called. Blocks.
func (s *Server) Start() error {
	s.logInfo("http server listening", "addr", s.opts.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the route mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// handleDevices returns every known device with live session state.
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.opts.Tracker.Devices()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleDeviceSessions returns the stored session history for one device.
func (s *Server) handleDeviceSessions(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("device_id")

	sessions, err := s.opts.Store.SessionsForDevice(r.Context(), deviceID, parseLimit(r))
	if err != nil {
		s.logError("device sessions query failed", err, "device_id", deviceID)
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if sessions == nil {
		sessions = []Session{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"sessions":  sessions,
	})
}

// handleLeaderboard returns the top sessions by score.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.opts.Store.Leaderboard(r.Context(), parseLimit(r))
	if err != nil {
		s.logError("leaderboard query failed", err)
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if entries == nil {
		entries = []LeaderboardEntry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

// handleStats returns store aggregates plus the live device count.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.opts.Store.Stats(r.Context())
	if err != nil {
		s.logError("stats query failed", err)
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sessions":     stats,
		"live_devices": len(s.opts.Tracker.Devices()),
	})
}

// handleCommand relays a single command byte to one bridge, or to every
// bridge via the "all" pseudo device.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("device_id")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	cmd, err := bridge.ParseCommand(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unrecognized command")
		return
	}

	topic := bridge.CommandTopic(s.opts.Namespace, deviceID)
	if err := s.opts.Publisher.Publish(topic, []byte{cmd}, s.opts.QoS, false); err != nil {
		s.logError("command publish failed", err, "topic", topic)
		s.writeError(w, http.StatusBadGateway, "publish failed")
		return
	}

	s.logInfo("command relayed", "device_id", deviceID, "command", string(cmd))
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id": deviceID,
		"command":   string(cmd),
	})
}

// handleHealth checks every registered dependency and reports 503 if any
// of them is down. Load balancers and the dashboard poll this.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	deps := make(map[string]string, len(s.opts.Health))
	status := http.StatusOK
	overall := "ok"

	for name, checker := range s.opts.Health {
		if err := checker.HealthCheck(r.Context()); err != nil {
			s.logError("health check failed", err, "dependency", name)
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			overall = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	s.writeJSON(w, status, map[string]any{
		"status":       overall,
		"dependencies": deps,
		"devices":      len(s.opts.Tracker.Devices()),
	})
}

// parseLimit reads the optional ?limit= query parameter.
func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logError("encoding response failed", err)
	}
}

// writeError writes a JSON error body.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// logInfo logs an info message if a logger is set.
func (s *Server) logInfo(msg string, keysAndValues ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is set.
func (s *Server) logError(msg string, err error, keysAndValues ...any) {
	if s.opts.Logger != nil {
		args := append([]any{"error", err}, keysAndValues...)
		s.opts.Logger.Error(msg, args...)
	}
}
