package warden

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer mints privilege tokens as HS256 JWTs. The signing secret is
// looked up by key id so keys can be rotated: tokens carry the id in their
// "kid" header and are verified against whichever secret it names.
type TokenIssuer struct {
	store    SecretStore
	activeID string
	now      func() time.Time
}

// NewTokenIssuer creates a TokenIssuer signing with the secret stored under activeKeyID.
func NewTokenIssuer(store SecretStore, activeKeyID string, now func() time.Time) (*TokenIssuer, error) {
	if store == nil {
		return nil, errors.New("new token issuer: secret store is required")
	}
	if _, err := store.Lookup(activeKeyID); err != nil {
		return nil, fmt.Errorf("new token issuer: active key %q: %w", activeKeyID, err)
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{store: store, activeID: activeKeyID, now: now}, nil
}

// Issue returns a signed token for userID expiring at expiresAt.
// Every token has a random jti so consecutive grants never collide.
func (t *TokenIssuer) Issue(userID string, expiresAt time.Time) (string, error) {
	secret, err := t.store.Lookup(t.activeID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(t.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	token.Header["kid"] = t.activeID

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the token's subject.
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (any, error) {
		kid, _ := tok.Header["kid"].(string)
		secret, lookupErr := t.store.Lookup(kid)
		if lookupErr != nil {
			return nil, lookupErr
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("verify token: %w: %v", ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("verify token: %w", ErrUnauthorized)
	}

	return claims.Subject, nil
}
