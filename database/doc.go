// Package database connects warden to a SQL user store.
//
// Two backends implement warden.UserRepo over the same single-table schema:
//
//   - PostgreSQL: pgx connection pool, row locks for read-modify-write
//   - SQLite: modernc.org/sqlite, suitable for single-node deployments
//
// # Usage
//
//	cfg := database.Config{
//	    Type:   "sqlite",
//	    DSN:    "warden.db",
//	    Tables: warden.Tables{Users: "warden_users"},
//	}
//
//	repo, cleanup, err := database.Open(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
//
// Open runs the migrations and validates the schema before returning the repo.
// Connect returns the underlying Database for callers that drive those steps
// themselves.
package database
