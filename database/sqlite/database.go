package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/warden"

	_ "modernc.org/sqlite" // SQLite driver
)

// Database wraps a SQLite handle with the user store's lifecycle operations.
type Database struct {
	db     *sql.DB
	tables warden.Tables
}

// Connect opens a SQLite database.
// Tables should be validated before calling Connect.
//
// The pool is limited to one connection: modernc serializes writers poorly
// under concurrent BEGIN, and ":memory:" databases are per connection.
func Connect(ctx context.Context, dsn string, tables warden.Tables) (*Database, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	return &Database{
		db:     db,
		tables: tables,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate runs database migrations to create required tables.
func (d *Database) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.db, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches expected structure.
func (d *Database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db, d.tables)
}

// GetRepo returns the UserRepo for database operations.
func (d *Database) GetRepo() warden.UserRepo {
	return &Repo{db: d.db, tableName: d.tables.Users}
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}
