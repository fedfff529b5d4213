package scoreboard

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/whaclab/whac-bridge/internal/infrastructure/database"
	_ "github.com/whaclab/whac-bridge/migrations" // Embedded schema
)

// openTestRepo opens a migrated repository on a temp database.
func openTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "sessions.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewRepository(db)
}

func testSession(id, deviceID string, score int) Session {
	return Session{
		ID:            id,
		DeviceID:      deviceID,
		Level:         3,
		Score:         score,
		Hits:          10,
		Misses:        2,
		Won:           true,
		AvgReactionMs: 450,
		StartedAt:     1700000000000,
		EndedAt:       1700000060000,
	}
}

func TestSaveAndQuerySessions(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveSession(ctx, testSession("s1", "dev-42", 120)); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if err := repo.SaveSession(ctx, testSession("s2", "dev-42", 80)); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if err := repo.SaveSession(ctx, testSession("s3", "dev-7", 200)); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	sessions, err := repo.SessionsForDevice(ctx, "dev-42", 10)
	if err != nil {
		t.Fatalf("SessionsForDevice() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions for dev-42 = %d, want 2", len(sessions))
	}
	if sessions[0].AvgReactionMs != 450 {
		t.Errorf("avg reaction = %v, want 450", sessions[0].AvgReactionMs)
	}
	if !sessions[0].Won {
		t.Error("won flag lost on round trip")
	}
}

func TestSaveSessionRejectsDuplicateID(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveSession(ctx, testSession("s1", "dev-42", 120)); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if err := repo.SaveSession(ctx, testSession("s1", "dev-42", 120)); err == nil {
		t.Error("duplicate session ID accepted")
	}
}

func TestLeaderboardRanking(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	scores := map[string]int{"a": 50, "b": 200, "c": 120, "d": 80}
	for id, score := range scores {
		if err := repo.SaveSession(ctx, testSession(id, "dev-42", score)); err != nil {
			t.Fatalf("SaveSession(%s) error = %v", id, err)
		}
	}

	entries, err := repo.Leaderboard(ctx, 3)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}

	wantOrder := []int{200, 120, 80}
	for i, want := range wantOrder {
		if entries[i].Score != want {
			t.Errorf("rank %d score = %d, want %d", i+1, entries[i].Score, want)
		}
		if entries[i].Rank != i+1 {
			t.Errorf("entry %d rank = %d, want %d", i, entries[i].Rank, i+1)
		}
	}
}

func TestLeaderboardEmptyStore(t *testing.T) {
	repo := openTestRepo(t)

	entries, err := repo.Leaderboard(context.Background(), 0)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
}

func TestStats(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() on empty store error = %v", err)
	}
	if stats.TotalSessions != 0 || stats.BestScore != 0 {
		t.Errorf("empty stats = %+v", stats)
	}

	if err := repo.SaveSession(ctx, testSession("s1", "dev-42", 100)); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveSession(ctx, testSession("s2", "dev-7", 200)); err != nil {
		t.Fatal(err)
	}

	stats, err = repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalSessions != 2 || stats.Devices != 2 || stats.BestScore != 200 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.AvgScore != 150 {
		t.Errorf("avg score = %v, want 150", stats.AvgScore)
	}
}
