// Package database provides the SQLite session store for the collector.
//
// This package manages:
//   - Connection lifecycle with WAL mode and busy-timeout pragmas
//   - Embedded schema migrations applied at startup
//   - Health checks for the HTTP stats endpoint
//
// The bridge agent never touches this package; persistence lives entirely
// on the collector side. SQLite's single-writer model fits the workload:
// one MQTT consumer writes finished sessions, HTTP handlers read the
// leaderboard concurrently via WAL.
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        "/var/lib/whaccloud/sessions.db",
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
