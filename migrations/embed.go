// Package migrations embeds the collector's SQL schema files into the
// binary so migrations run without any files present on disk.
package migrations

import (
	"embed"

	"github.com/whaclab/whac-bridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	// Register embedded migrations with the database package.
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
