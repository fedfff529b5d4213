package database

import (
	"context"
	"testing"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantOK      bool
	}{
		{"valid up migration", "20260801_000000_create_sessions.up.sql", "20260801_000000", true},
		{"down migration skipped", "20260801_000000_create_sessions.down.sql", "", false},
		{"plain sql skipped", "20260801_000000_create_sessions.sql", "", false},
		{"not sql", "readme.md", "", false},
		{"no version", "notes.up.sql", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, ok := parseMigrationFilename(tt.filename)
			if version != tt.wantVersion || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename(%q) = (%q, %v), want (%q, %v)",
					tt.filename, version, ok, tt.wantVersion, tt.wantOK)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260801_000000_create_sessions.up.sql", "create_sessions"},
		{"20260801_000000_add_reaction_index.up.sql", "add_reaction_index"},
		{"weird.up.sql", "weird"},
	}

	for _, tt := range tests {
		if got := extractMigrationName(tt.filename); got != tt.want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestMigrateWithoutEmbeddedFS(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// No embedded FS registered in this test binary: Migrate must still
	// create the bookkeeping table and succeed as a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations",
	).Scan(&count)
	if err != nil {
		t.Fatalf("schema_migrations missing: %v", err)
	}
	if count != 0 {
		t.Errorf("applied %d migrations with no embedded FS, want 0", count)
	}

	// Re-running must be idempotent.
	if err := db.Migrate(ctx); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestApplyMigrationRecordsVersion(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.createMigrationsTable(ctx); err != nil {
		t.Fatalf("createMigrationsTable() error = %v", err)
	}

	m := Migration{
		Version: "20260801_000000",
		Name:    "create_sessions",
		SQL:     "CREATE TABLE sessions_probe (id TEXT PRIMARY KEY)",
	}
	if err := db.applyMigration(ctx, m); err != nil {
		t.Fatalf("applyMigration() error = %v", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		t.Fatalf("appliedVersions() error = %v", err)
	}
	if !applied["20260801_000000"] {
		t.Error("migration version not recorded")
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO sessions_probe (id) VALUES ('x')"); err != nil {
		t.Errorf("migrated table unusable: %v", err)
	}
}

func TestApplyMigrationRollsBackOnFailure(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.createMigrationsTable(ctx); err != nil {
		t.Fatalf("createMigrationsTable() error = %v", err)
	}

	m := Migration{
		Version: "20260801_000001",
		Name:    "broken",
		SQL:     "CREATE TABLE (syntax error",
	}
	if err := db.applyMigration(ctx, m); err == nil {
		t.Fatal("applyMigration() accepted invalid SQL")
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		t.Fatalf("appliedVersions() error = %v", err)
	}
	if applied["20260801_000001"] {
		t.Error("failed migration recorded as applied")
	}
}
