// Package jsonstore provides a warden.UserRepo backed by a single JSON document.
// Every operation loads the whole document, edits it in memory and writes it
// back atomically through a temp file and rename, all under one mutex.
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sagarc03/warden"
)

// record is the persisted form of a user; the id is the document key.
type record struct {
	PasswordHash string              `json:"pw"`
	Key          warden.PrivilegeKey `json:"key"`
	CreatedAt    time.Time           `json:"created_at"`
}

type document map[string]record

// Store is a JSON file user store.
type Store struct {
	mu   sync.Mutex
	root *os.Root
	name string
}

// Open opens the store at path, creating the parent directory if needed.
// A missing file is treated as an empty document and created on first write.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("open json store: %w: path is required", warden.ErrInvalidInput)
	}

	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if name == "" {
		return nil, fmt.Errorf("open json store: %w: %q is a directory", warden.ErrInvalidInput, path)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("open json store: create directory: %w", err)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open json store: %w", err)
	}

	s := &Store{root: root, name: name}

	// Fail fast on a corrupt document rather than on the first request.
	if _, err := s.load(); err != nil {
		_ = root.Close()
		return nil, fmt.Errorf("open json store: %w", err)
	}

	return s, nil
}

// Close releases the store directory handle.
func (s *Store) Close() error {
	return s.root.Close()
}

// Get returns the user with the given id.
func (s *Store) Get(ctx context.Context, id string) (warden.User, error) {
	if err := ctx.Err(); err != nil {
		return warden.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return warden.User{}, fmt.Errorf("get %s: %w", id, err)
	}

	rec, ok := doc[id]
	if !ok {
		return warden.User{}, fmt.Errorf("get %s: %w", id, warden.ErrNotFound)
	}

	return rec.toUser(id), nil
}

// Create inserts u. Returns warden.ErrConflict if the id is taken.
func (s *Store) Create(ctx context.Context, u warden.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return fmt.Errorf("create %s: %w", u.ID, err)
	}

	if _, ok := doc[u.ID]; ok {
		return fmt.Errorf("create %s: %w", u.ID, warden.ErrConflict)
	}

	doc[u.ID] = fromUser(u)

	if err := s.save(doc); err != nil {
		return fmt.Errorf("create %s: %w", u.ID, err)
	}

	return nil
}

// Modify applies fn to the stored user and persists the result.
// The id is fixed: changes fn makes to u.ID are ignored.
func (s *Store) Modify(ctx context.Context, id string, fn func(u *warden.User) error) (warden.User, error) {
	if err := ctx.Err(); err != nil {
		return warden.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return warden.User{}, fmt.Errorf("modify %s: %w", id, err)
	}

	rec, ok := doc[id]
	if !ok {
		return warden.User{}, fmt.Errorf("modify %s: %w", id, warden.ErrNotFound)
	}

	u := rec.toUser(id)
	if err := fn(&u); err != nil {
		return warden.User{}, fmt.Errorf("modify %s: %w", id, err)
	}
	u.ID = id

	doc[id] = fromUser(u)

	if err := s.save(doc); err != nil {
		return warden.User{}, fmt.Errorf("modify %s: %w", id, err)
	}

	return u, nil
}

// List returns every user sorted by id.
func (s *Store) List(ctx context.Context) ([]warden.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]warden.User, 0, len(doc))
	for id, rec := range doc {
		users = append(users, rec.toUser(id))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	return users, nil
}

// Count returns the number of users in the document.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return len(doc), nil
}

func (s *Store) load() (document, error) {
	f, err := s.root.Open(s.name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return document{}, nil
		}
		return nil, fmt.Errorf("load document: %w: %w", warden.ErrInternal, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close user document", "err", closeErr)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("load document: %w: %w", warden.ErrInternal, err)
	}

	doc := document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("load document: %w: %w", warden.ErrInternal, err)
	}

	return doc, nil
}

// save writes doc to a temp file, syncs it and renames it over the document,
// so readers only ever see a complete file.
func (s *Store) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	tmpFile := tmpFileName()
	t, err := s.root.OpenFile(tmpFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("save document: could not open temp file: %w: %w", warden.ErrInternal, err)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	if _, err := t.Write(data); err != nil {
		return fmt.Errorf("save document: write temp file: %w: %w", warden.ErrInternal, err)
	}

	if err := t.Sync(); err != nil {
		return fmt.Errorf("save document: sync temp file: %w: %w", warden.ErrInternal, err)
	}

	if err := s.root.Rename(tmpFile, s.name); err != nil {
		return fmt.Errorf("save document: rename: %w: %w", warden.ErrInternal, err)
	}

	success = true
	return nil
}

func (r record) toUser(id string) warden.User {
	return warden.User{
		ID:           id,
		PasswordHash: r.PasswordHash,
		Key:          r.Key,
		CreatedAt:    r.CreatedAt,
	}
}

func fromUser(u warden.User) record {
	return record{
		PasswordHash: u.PasswordHash,
		Key:          u.Key,
		CreatedAt:    u.CreatedAt,
	}
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}
