package warden

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AuthConfig holds configuration options for AuthService.
type AuthConfig struct {
	// PasswordPolicy enables the user id and password rules of ValidateUserID and ValidatePassword.
	PasswordPolicy bool
	Hasher         *PasswordHasher
	Now            func() time.Time
}

// AuthService registers users, checks credentials and manages login sessions.
type AuthService struct {
	repo     UserRepo
	sessions SessionStore
	hasher   *PasswordHasher
	policy   bool
	now      func() time.Time
}

func NewAuthService(repo UserRepo, sessions SessionStore, cfg AuthConfig) (*AuthService, error) {
	if repo == nil || sessions == nil {
		return nil, errors.New("new auth service: user repo and session store are required")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		var err error
		hasher, err = NewPasswordHasher(0)
		if err != nil {
			return nil, fmt.Errorf("new auth service: %w", err)
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &AuthService{
		repo:     repo,
		sessions: sessions,
		hasher:   hasher,
		policy:   cfg.PasswordPolicy,
		now:      now,
	}, nil
}

// Register creates a new user with an ungranted privilege key.
//
// Error types returned:
//   - ErrConflict: the id is already registered; the stored record is untouched
//   - ErrInvalidInput: empty id, or a policy violation when the password policy is enabled
//   - Wrapped store errors
//
// The duplicate check precedes the policy check, so re-registering an existing
// id always reports the conflict.
func (s *AuthService) Register(ctx context.Context, id, password string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	if id == "" {
		return fmt.Errorf("register: %w: user id is required", ErrInvalidInput)
	}

	if s.policy {
		_, err := s.repo.Get(ctx, id)
		if err == nil {
			return fmt.Errorf("register %s: %w", id, ErrConflict)
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("register %s: %w", id, err)
		}
		if err := ValidateUserID(id); err != nil {
			return fmt.Errorf("register: %w", err)
		}
		if err := ValidatePassword(password); err != nil {
			return fmt.Errorf("register: %w", err)
		}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("register %s: %w", id, err)
	}

	u := User{
		ID:           id,
		PasswordHash: hash,
		Key:          NewUngrantedKey(),
		CreatedAt:    s.now().UTC(),
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return fmt.Errorf("register %s: %w", id, err)
	}

	return nil
}

// Login verifies the credentials and starts a session.
// Every failure, whether unknown id, wrong password or a store error during
// the lookup, is reported as the same ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, id, password string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}

	u, err := s.repo.Get(ctx, id)
	if err != nil {
		s.hasher.CompareDummy(password)
		return Session{}, ErrUnauthorized
	}

	if !s.hasher.Compare(u.PasswordHash, password) {
		return Session{}, ErrUnauthorized
	}

	sess, err := s.sessions.Create(u.ID)
	if err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}

	return sess, nil
}

// CheckSession returns the live session for sessionID.
//
// Returns ErrUnauthorized if the id is empty, unknown or expired.
func (s *AuthService) CheckSession(ctx context.Context, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, fmt.Errorf("check session: %w", err)
	}

	if sessionID == "" {
		return Session{}, fmt.Errorf("check session: %w", ErrUnauthorized)
	}

	sess, ok := s.sessions.Lookup(sessionID)
	if !ok {
		return Session{}, fmt.Errorf("check session: %w", ErrUnauthorized)
	}

	return sess, nil
}

// Logout ends the session. Unknown ids are ignored.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if sessionID != "" {
		s.sessions.Delete(sessionID)
	}
	return nil
}

// SessionMaxAge returns the remaining lifetime of sess in whole seconds.
func (s *AuthService) SessionMaxAge(sess Session) int {
	remaining := sess.ExpiresAt.Sub(s.now()).Round(time.Second)
	if remaining < 0 {
		return 0
	}
	return int(remaining / time.Second)
}
