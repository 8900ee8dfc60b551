// Package sqlite implements warden.UserRepo on SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sagarc03/warden"
)

type Repo struct {
	mu        sync.Mutex
	db        *sql.DB
	tableName string
}

// NewRepo creates a Repo over an already migrated database.
func NewRepo(db *sql.DB, tables warden.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}
	return &Repo{db: db, tableName: tables.Users}, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *Repo) Get(ctx context.Context, id string) (warden.User, error) {
	u, err := r.get(ctx, r.db, id)
	if err != nil {
		return warden.User{}, fmt.Errorf("get %s: %w", id, err)
	}
	return u, nil
}

func (r *Repo) get(ctx context.Context, q queryRower, id string) (warden.User, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, pw, key_value, key_expiry, created_at FROM %s WHERE id = ?`,
		quoteIdentifier(r.tableName))

	var u warden.User
	var createdAt string
	err := q.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.PasswordHash, &u.Key.Value, &u.Key.ExpiresAt, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return warden.User{}, warden.ErrNotFound
		}
		return warden.User{}, err
	}

	u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return warden.User{}, fmt.Errorf("parse created_at: %w", err)
	}

	return u, nil
}

// Create inserts u, reporting warden.ErrConflict when the id already exists.
func (r *Repo) Create(ctx context.Context, u warden.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, pw, key_value, key_expiry, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`, quoteIdentifier(r.tableName))

	res, err := r.db.ExecContext(ctx, query,
		u.ID, u.PasswordHash, keyValue(u.Key), u.Key.ExpiresAt, u.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", u.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create %s: %w", u.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("create %s: %w", u.ID, warden.ErrConflict)
	}

	return nil
}

// Modify runs fn inside a transaction on the current row.
func (r *Repo) Modify(ctx context.Context, id string, fn func(u *warden.User) error) (warden.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return warden.User{}, fmt.Errorf("modify %s: begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	u, err := r.get(ctx, tx, id)
	if err != nil {
		return warden.User{}, fmt.Errorf("modify %s: %w", id, err)
	}

	if err := fn(&u); err != nil {
		return warden.User{}, fmt.Errorf("modify %s: %w", id, err)
	}
	u.ID = id

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET pw = ?, key_value = ?, key_expiry = ? WHERE id = ?`,
		quoteIdentifier(r.tableName))

	if _, err := tx.ExecContext(ctx, query, u.PasswordHash, keyValue(u.Key), u.Key.ExpiresAt, id); err != nil {
		return warden.User{}, fmt.Errorf("modify %s: update: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return warden.User{}, fmt.Errorf("modify %s: commit: %w", id, err)
	}

	return u, nil
}

// List returns every user ordered by id.
func (r *Repo) List(ctx context.Context) ([]warden.User, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, pw, key_value, key_expiry, created_at FROM %s ORDER BY id`,
		quoteIdentifier(r.tableName))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []warden.User
	for rows.Next() {
		var u warden.User
		var createdAt string
		if err := rows.Scan(&u.ID, &u.PasswordHash, &u.Key.Value, &u.Key.ExpiresAt, &createdAt); err != nil {
			return nil, fmt.Errorf("list users: scan: %w", err)
		}
		u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("list users: parse created_at: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdentifier(r.tableName)) //nolint:gosec // table name is validated

	var n int
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func keyValue(k warden.PrivilegeKey) string {
	if strings.TrimSpace(k.Value) == "" {
		return warden.UngrantedKey
	}
	return k.Value
}
