package jsonstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sagarc03/warden"
	"github.com/sagarc03/warden/jsonstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*jsonstore.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "users.json")
	s, err := jsonstore.Open(path)
	require.NoError(t, err, "open json store")
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func testUser(id string) warden.User {
	return warden.User{
		ID:           id,
		PasswordHash: "hash-" + id,
		Key:          warden.NewUngrantedKey(),
		CreatedAt:    time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s, path := openStore(t)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "file is created on first write")
}

func TestStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	require.NoError(t, s.Create(ctx, testUser("alice")))

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, testUser("alice"), got)

	_, err = s.Get(ctx, "bob")
	assert.ErrorIs(t, err, warden.ErrNotFound)
}

func TestStore_Create_Duplicate(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	require.NoError(t, s.Create(ctx, testUser("alice")))

	dup := testUser("alice")
	dup.PasswordHash = "other"
	err := s.Create(ctx, dup)
	assert.ErrorIs(t, err, warden.ErrConflict)

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash-alice", got.PasswordHash)
}

func TestStore_DocumentFormat(t *testing.T) {
	ctx := context.Background()
	s, path := openStore(t)

	u := testUser("alice")
	u.Key = warden.PrivilegeKey{Value: "tok", ExpiresAt: 1_800_000_000}
	require.NoError(t, s.Create(ctx, u))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Contains(t, doc, "alice")
	assert.Equal(t, "hash-alice", doc["alice"]["pw"])
	assert.Equal(t, map[string]any{"value": "tok", "expiry_time": float64(1_800_000_000)}, doc["alice"]["key"])
	assert.Contains(t, doc["alice"], "created_at")
}

func TestStore_Modify(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)
	require.NoError(t, s.Create(ctx, testUser("alice")))

	updated, err := s.Modify(ctx, "alice", func(u *warden.User) error {
		u.Key = warden.PrivilegeKey{Value: "tok", ExpiresAt: 42}
		u.ID = "renamed"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", updated.ID, "id cannot be changed")

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, warden.PrivilegeKey{Value: "tok", ExpiresAt: 42}, got.Key)

	_, err = s.Get(ctx, "renamed")
	assert.ErrorIs(t, err, warden.ErrNotFound)
}

func TestStore_Modify_ErrorAborts(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)
	require.NoError(t, s.Create(ctx, testUser("alice")))

	_, err := s.Modify(ctx, "alice", func(u *warden.User) error {
		u.PasswordHash = "changed"
		return warden.ErrConflict
	})
	assert.ErrorIs(t, err, warden.ErrConflict)

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash-alice", got.PasswordHash)
}

func TestStore_Modify_NotFound(t *testing.T) {
	s, _ := openStore(t)

	called := false
	_, err := s.Modify(context.Background(), "ghost", func(*warden.User) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, warden.ErrNotFound)
	assert.False(t, called)
}

func TestStore_ListCount(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	for _, id := range []string{"carol", "alice", "bob"} {
		require.NoError(t, s.Create(ctx, testUser(id)))
	}

	users, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].ID)
	assert.Equal(t, "bob", users[1].ID)
	assert.Equal(t, "carol", users[2].ID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	s, path := openStore(t)
	require.NoError(t, s.Create(ctx, testUser("alice")))
	require.NoError(t, s.Close())

	reopened, err := jsonstore.Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, testUser("alice"), got)
}

func TestStore_NoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	s, path := openStore(t)

	for i := range 5 {
		require.NoError(t, s.Create(ctx, testUser(fmt.Sprintf("u%d", i))))
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "users.json", entries[0].Name())
}

func TestOpen_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := jsonstore.Open(path)
	assert.ErrorIs(t, err, warden.ErrInternal)
}

func TestOpen_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	s, err := jsonstore.Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := jsonstore.Open("")
	assert.ErrorIs(t, err, warden.ErrInvalidInput)

	_, err = jsonstore.Open(t.TempDir() + string(os.PathSeparator))
	assert.ErrorIs(t, err, warden.ErrInvalidInput)
}

func TestStore_ContextCanceled(t *testing.T) {
	s, _ := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Create(ctx, testUser("alice")), context.Canceled)
}

func TestStore_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	s, path := openStore(t)

	const n = 25
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Create(ctx, testUser(fmt.Sprintf("user%02d", i))))
		}(i)
	}
	wg.Wait()

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, count)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc), "document stays valid JSON")
	assert.Len(t, doc, n)
}

func TestStore_ConcurrentModify(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)
	require.NoError(t, s.Create(ctx, testUser("alice")))

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Modify(ctx, "alice", func(u *warden.User) error {
				u.Key.ExpiresAt++
				u.Key.Value = "tok"
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.Key.ExpiresAt, "no update is lost")
}
