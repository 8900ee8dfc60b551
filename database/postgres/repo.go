// Package postgres implements warden.UserRepo on PostgreSQL
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/warden"
)

type Repo struct {
	pool      *pgxpool.Pool
	tableName string
}

func NewRepo(pool *pgxpool.Pool, tables warden.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{pool: pool, tableName: tables.Users}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repo) table() string {
	return pgx.Identifier{r.tableName}.Sanitize()
}

func (r *Repo) Get(ctx context.Context, id string) (warden.User, error) {
	query := fmt.Sprintf(`
		SELECT id, pw, key_value, key_expiry, created_at
		FROM %s
		WHERE id = $1
	`, r.table())

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return warden.User{}, fmt.Errorf("get %s: %w", id, err)
	}

	return u, nil
}

// Create inserts u. The primary key makes the existence check and the insert atomic.
func (r *Repo) Create(ctx context.Context, u warden.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, pw, key_value, key_expiry, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, r.table())

	value := u.Key.Value
	if value == "" {
		value = warden.UngrantedKey
	}

	tag, err := r.pool.Exec(ctx, query, u.ID, u.PasswordHash, value, u.Key.ExpiresAt, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create %s: %w", u.ID, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create %s: %w", u.ID, warden.ErrConflict)
	}

	return nil
}

// Modify locks the row with SELECT ... FOR UPDATE, applies fn and writes the result back.
func (r *Repo) Modify(ctx context.Context, id string, fn func(u *warden.User) error) (warden.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return warden.User{}, fmt.Errorf("modify %s: begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := fmt.Sprintf(`
		SELECT id, pw, key_value, key_expiry, created_at
		FROM %s
		WHERE id = $1
		FOR UPDATE
	`, r.table())

	u, err := scanUser(tx.QueryRow(ctx, query, id))
	if err != nil {
		return warden.User{}, fmt.Errorf("modify %s: %w", id, err)
	}

	if err := fn(&u); err != nil {
		return warden.User{}, fmt.Errorf("modify %s: %w", id, err)
	}
	u.ID = id

	update := fmt.Sprintf(`
		UPDATE %s
		SET pw = $2, key_value = $3, key_expiry = $4
		WHERE id = $1
	`, r.table())

	if _, err := tx.Exec(ctx, update, id, u.PasswordHash, u.Key.Value, u.Key.ExpiresAt); err != nil {
		return warden.User{}, fmt.Errorf("modify %s: update: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return warden.User{}, fmt.Errorf("modify %s: commit: %w", id, err)
	}

	return u, nil
}

func (r *Repo) List(ctx context.Context) ([]warden.User, error) {
	query := fmt.Sprintf(`
		SELECT id, pw, key_value, key_expiry, created_at
		FROM %s
		ORDER BY id
	`, r.table())

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []warden.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table())).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func scanUser(row pgx.Row) (warden.User, error) {
	var u warden.User
	err := row.Scan(&u.ID, &u.PasswordHash, &u.Key.Value, &u.Key.ExpiresAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return warden.User{}, warden.ErrNotFound
		}
		return warden.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}
