package warden

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultPrivilegeTTL is how long a privilege grant stays active.
const DefaultPrivilegeTTL = time.Hour

// PrivilegeConfig holds configuration options for PrivilegeService.
type PrivilegeConfig struct {
	TTL time.Duration // Grant lifetime (default: 1h)
	Now func() time.Time
}

// Grant is the result of a successful privilege upgrade.
type Grant struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
	TTL       time.Duration
}

// MaxAge returns the grant lifetime in whole seconds, for cookie headers.
func (g Grant) MaxAge() int {
	return int(g.TTL / time.Second)
}

// PrivilegeService issues and checks time-boxed privilege keys.
type PrivilegeService struct {
	repo   UserRepo
	tokens TokenMinter
	ttl    time.Duration
	now    func() time.Time
}

func NewPrivilegeService(repo UserRepo, tokens TokenMinter, cfg PrivilegeConfig) (*PrivilegeService, error) {
	if repo == nil || tokens == nil {
		return nil, errors.New("new privilege service: user repo and token minter are required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultPrivilegeTTL
	}
	if ttl < time.Second {
		return nil, fmt.Errorf("new privilege service: %w: ttl must be at least 1s", ErrInvalidInput)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &PrivilegeService{repo: repo, tokens: tokens, ttl: ttl, now: now}, nil
}

// Key returns the stored key of a user together with its current state.
func (s *PrivilegeService) Key(ctx context.Context, id string) (PrivilegeKey, KeyState, error) {
	if err := ctx.Err(); err != nil {
		return PrivilegeKey{}, "", fmt.Errorf("privilege key: %w", err)
	}

	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return PrivilegeKey{}, "", fmt.Errorf("privilege key %s: %w", id, err)
	}

	return u.Key, u.Key.State(s.now()), nil
}

// IsValid reports whether the user's privilege key is active.
//
// Returns ErrNotFound if the user doesn't exist.
func (s *PrivilegeService) IsValid(ctx context.Context, id string) (bool, error) {
	_, state, err := s.Key(ctx, id)
	if err != nil {
		return false, err
	}
	return state == KeyActive, nil
}

// CheckAuthorized returns nil if the user holds an active key.
// Unknown users and inactive keys both yield ErrUnauthorized; store failures
// are returned wrapped.
func (s *PrivilegeService) CheckAuthorized(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("check authorized: %w: user id is required", ErrInvalidInput)
	}

	valid, err := s.IsValid(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("check authorized %s: %w", id, ErrUnauthorized)
		}
		return fmt.Errorf("check authorized: %w", err)
	}
	if !valid {
		return fmt.Errorf("check authorized %s: %w", id, ErrUnauthorized)
	}

	return nil
}

// Upgrade grants a new privilege key to the user.
//
// The check and the grant happen in one Modify cycle. While a grant is active
// Upgrade returns ErrConflict and leaves the stored key unchanged; once it
// has expired a fresh, different token is minted.
//
// Error types returned:
//   - ErrInvalidInput: empty id
//   - ErrNotFound: unknown user
//   - ErrConflict: a grant is still active
//   - Wrapped token or store errors
func (s *PrivilegeService) Upgrade(ctx context.Context, id string) (Grant, error) {
	if err := ctx.Err(); err != nil {
		return Grant{}, fmt.Errorf("upgrade: %w", err)
	}

	if id == "" {
		return Grant{}, fmt.Errorf("upgrade: %w: user id is required", ErrInvalidInput)
	}

	var grant Grant
	_, err := s.repo.Modify(ctx, id, func(u *User) error {
		now := s.now()
		if u.Key.Valid(now) {
			return ErrConflict
		}

		expiresAt := now.Add(s.ttl).Truncate(time.Second)
		token, err := s.tokens.Issue(u.ID, expiresAt)
		if err != nil {
			return err
		}

		u.Key = PrivilegeKey{Value: token, ExpiresAt: expiresAt.Unix()}
		grant = Grant{UserID: u.ID, Token: token, ExpiresAt: expiresAt, TTL: s.ttl}
		return nil
	})
	if err != nil {
		return Grant{}, fmt.Errorf("upgrade %s: %w", id, err)
	}

	return grant, nil
}

// AuthorizeToken accepts a privilege token only if it verifies and is the
// key currently stored, and active, on the user it names.
//
// Returns the user id on success, ErrUnauthorized otherwise.
func (s *PrivilegeService) AuthorizeToken(ctx context.Context, token string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("authorize token: %w", err)
	}

	if token == "" || token == UngrantedKey {
		return "", fmt.Errorf("authorize token: %w", ErrUnauthorized)
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		return "", fmt.Errorf("authorize token: %w", err)
	}

	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("authorize token: %w", ErrUnauthorized)
		}
		return "", fmt.Errorf("authorize token: %w", err)
	}

	if u.Key.Value != token || !u.Key.Valid(s.now()) {
		return "", fmt.Errorf("authorize token: %w", ErrUnauthorized)
	}

	return u.ID, nil
}
