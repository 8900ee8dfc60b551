package warden_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sagarc03/warden"
	"github.com/sagarc03/warden/keybackend"
	"github.com/sagarc03/warden/session"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type SpyUserRepo struct {
	mock.Mock
}

func (s *SpyUserRepo) Get(ctx context.Context, id string) (warden.User, error) {
	args := s.Called(ctx, id)
	return args.Get(0).(warden.User), args.Error(1)
}

func (s *SpyUserRepo) Create(ctx context.Context, u warden.User) error {
	args := s.Called(ctx, u)
	return args.Error(0)
}

func (s *SpyUserRepo) Modify(ctx context.Context, id string, fn func(u *warden.User) error) (warden.User, error) {
	args := s.Called(ctx, id, fn)
	return args.Get(0).(warden.User), args.Error(1)
}

func (s *SpyUserRepo) List(ctx context.Context) ([]warden.User, error) {
	args := s.Called(ctx)
	return args.Get(0).([]warden.User), args.Error(1)
}

func (s *SpyUserRepo) Count(ctx context.Context) (int, error) {
	args := s.Called(ctx)
	return args.Int(0), args.Error(1)
}

type SpyImageStorage struct {
	mock.Mock
}

func (s *SpyImageStorage) Stat(ctx context.Context, name string) (warden.ImageInfo, error) {
	args := s.Called(ctx, name)
	return args.Get(0).(warden.ImageInfo), args.Error(1)
}

func (s *SpyImageStorage) Read(ctx context.Context, name string) ([]byte, error) {
	args := s.Called(ctx, name)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type SpyAuthorizer struct {
	mock.Mock
}

func (s *SpyAuthorizer) AuthorizeToken(ctx context.Context, token string) (string, error) {
	args := s.Called(ctx, token)
	return args.String(0), args.Error(1)
}

// memUserRepo is a mutex-guarded UserRepo for service tests.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]warden.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]warden.User)}
}

func (r *memUserRepo) Get(_ context.Context, id string) (warden.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return warden.User{}, fmt.Errorf("get %s: %w", id, warden.ErrNotFound)
	}
	return u, nil
}

func (r *memUserRepo) Create(_ context.Context, u warden.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; ok {
		return fmt.Errorf("create %s: %w", u.ID, warden.ErrConflict)
	}
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) Modify(_ context.Context, id string, fn func(u *warden.User) error) (warden.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return warden.User{}, fmt.Errorf("modify %s: %w", id, warden.ErrNotFound)
	}
	if err := fn(&u); err != nil {
		return warden.User{}, fmt.Errorf("modify %s: %w", id, err)
	}
	r.users[id] = u
	return u, nil
}

func (r *memUserRepo) List(_ context.Context) ([]warden.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]warden.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memUserRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

// testClock is a settable clock shared by services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_800_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestHasher(t *testing.T) *warden.PasswordHasher {
	t.Helper()
	h, err := warden.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err, "new password hasher")
	return h
}

func newTestIssuer(t *testing.T, clock *testClock) *warden.TokenIssuer {
	t.Helper()
	store := keybackend.NewMapSecretStore(map[string]string{"test": "test-signing-secret"})
	issuer, err := warden.NewTokenIssuer(store, "test", clock.Now)
	require.NoError(t, err, "new token issuer")
	return issuer
}

type testServices struct {
	repo      *memUserRepo
	sessions  *session.Store
	clock     *testClock
	auth      *warden.AuthService
	privilege *warden.PrivilegeService
}

func newTestServices(t *testing.T, policy bool) testServices {
	t.Helper()
	clock := newTestClock()
	repo := newMemUserRepo()
	sessions := session.NewStore(time.Hour, session.WithClock(clock.Now))

	auth, err := warden.NewAuthService(repo, sessions, warden.AuthConfig{
		PasswordPolicy: policy,
		Hasher:         newTestHasher(t),
		Now:            clock.Now,
	})
	require.NoError(t, err, "new auth service")

	privilege, err := warden.NewPrivilegeService(repo, newTestIssuer(t, clock), warden.PrivilegeConfig{
		TTL: time.Hour,
		Now: clock.Now,
	})
	require.NoError(t, err, "new privilege service")

	return testServices{repo: repo, sessions: sessions, clock: clock, auth: auth, privilege: privilege}
}
