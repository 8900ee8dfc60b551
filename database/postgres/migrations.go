package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/warden"
)

// Migrate creates every table the user store needs. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables warden.Tables) error {
	if err := createUsersTable(ctx, pool, tables.Users); err != nil {
		return fmt.Errorf("migrate up %s: %w", tables.Users, err)
	}
	return nil
}

// DropTables removes the tables created by Migrate.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tables warden.Tables) error {
	quotedTable := pgx.Identifier{tables.Users}.Sanitize()
	if _, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quotedTable)); err != nil {
		return fmt.Errorf("migrate down %s: %w", tables.Users, err)
	}
	return nil
}

func createUsersTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			pw TEXT NOT NULL,
			key_value TEXT NOT NULL DEFAULT '0',
			key_expiry BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, quotedTable)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}
