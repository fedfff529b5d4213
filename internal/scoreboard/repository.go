package scoreboard

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/whaclab/whac-bridge/internal/infrastructure/database"
)

// defaultLeaderboardLimit is used when a caller asks for zero entries.
const defaultLeaderboardLimit = 10

// maxLeaderboardLimit caps a single leaderboard query.
const maxLeaderboardLimit = 100

// LeaderboardEntry is one row of the all-time leaderboard.
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	SessionID string `json:"session_id"`
	DeviceID  string `json:"device_id"`
	Level     int    `json:"level"`
	Score     int    `json:"score"`
	EndedAt   int64  `json:"ended_at"`
}

// StoreStats summarizes the session store.
type StoreStats struct {
	TotalSessions int     `json:"total_sessions"`
	Devices       int     `json:"devices"`
	BestScore     int     `json:"best_score"`
	AvgScore      float64 `json:"avg_score"`
}

// Repository persists finished sessions in SQLite and serves the
// leaderboard queries.
type Repository struct {
	db *database.DB
}

// NewRepository creates a repository over an open, migrated database.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// SaveSession inserts one finished session.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - s: Finished session; EndedAt must be set
//
// Returns:
//   - error: If the insert fails
func (r *Repository) SaveSession(ctx context.Context, s Session) error {
	var avgReaction any
	if s.AvgReactionMs > 0 {
		avgReaction = s.AvgReactionMs
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions
			(id, device_id, level, score, hits, misses, won, avg_reaction_ms, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.DeviceID, s.Level, s.Score, s.Hits, s.Misses, s.Won,
		avgReaction, s.StartedAt, s.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", s.ID, err)
	}
	return nil
}

// Leaderboard returns the highest-scoring sessions, best first.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - limit: Maximum entries; 0 means the default, values above the cap
//     are clamped
//
// Returns:
//   - []LeaderboardEntry: Ranked entries, may be empty
//   - error: If the query fails
func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, level, score, ended_at
		FROM sessions
		ORDER BY score DESC, ended_at ASC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.SessionID, &e.DeviceID, &e.Level, &e.Score, &e.EndedAt); err != nil {
			return nil, fmt.Errorf("scanning leaderboard row: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating leaderboard: %w", err)
	}
	return entries, nil
}

// Stats returns aggregate figures over all stored sessions.
func (r *Repository) Stats(ctx context.Context) (StoreStats, error) {
	var stats StoreStats
	var best sql.NullInt64
	var avg sql.NullFloat64

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT device_id), MAX(score), AVG(score)
		FROM sessions`,
	).Scan(&stats.TotalSessions, &stats.Devices, &best, &avg)
	if err != nil {
		return StoreStats{}, fmt.Errorf("querying session stats: %w", err)
	}

	if best.Valid {
		stats.BestScore = int(best.Int64)
	}
	if avg.Valid {
		stats.AvgScore = avg.Float64
	}
	return stats, nil
}

// SessionsForDevice returns the most recent finished sessions for one
// device, newest first.
func (r *Repository) SessionsForDevice(ctx context.Context, deviceID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, level, score, hits, misses, won,
		       COALESCE(avg_reaction_ms, 0), started_at, ended_at
		FROM sessions
		WHERE device_id = ?
		ORDER BY started_at DESC
		LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions for %s: %w", deviceID, err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.DeviceID, &s.Level, &s.Score,
			&s.Hits, &s.Misses, &s.Won, &s.AvgReactionMs, &s.StartedAt, &s.EndedAt); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}
