package warden

import (
	"context"
	"time"
)

// UserRepo defines the interface for persisting user records.
// Implementations must serialize every read-modify-write cycle so that two
// concurrent writers never clobber each other's update.
//
// All methods accept a context for cancellation and timeout control.
type UserRepo interface {
	// Get retrieves a user by id.
	//
	// Returns:
	//   - User: the stored record if found
	//   - error: ErrNotFound if the id doesn't exist, or other storage errors
	Get(ctx context.Context, id string) (User, error)

	// Create inserts a new user. The existence check and the insert happen
	// under the same lock or transaction.
	//
	// Returns:
	//   - error: ErrConflict if a user with the same id already exists, or other storage errors
	Create(ctx context.Context, u User) error

	// Modify loads a user, applies fn to it and persists the result as one
	// atomic cycle. If fn returns an error nothing is persisted and the error
	// is returned wrapped.
	//
	// Returns:
	//   - User: the record as persisted
	//   - error: ErrNotFound if the id doesn't exist, fn's error, or other storage errors
	Modify(ctx context.Context, id string, fn func(u *User) error) (User, error)

	// List returns every user ordered by id.
	List(ctx context.Context) ([]User, error)

	// Count returns the number of stored users.
	Count(ctx context.Context) (int, error)
}

// SessionStore holds login sessions in process memory.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// Create starts a new session for the user and returns it.
	Create(userID string) (Session, error)
	// Lookup returns the session for id. Expired sessions are reported as absent.
	Lookup(id string) (Session, bool)
	// Delete removes a session. Deleting an unknown id is a no-op.
	Delete(id string)
	// Len returns the number of sessions currently held, expired or not.
	Len() int
}

// ImageInfo describes a file in the content root.
type ImageInfo struct {
	Name        string
	Size        int64
	ContentType string
}

// ImageStorage provides read-only access to the files served from the content root.
// Implementations must confine every lookup to the root directory.
type ImageStorage interface {
	// Stat returns information about the named file.
	//
	// Returns:
	//   - error: ErrNotFound if the file doesn't exist or is a directory
	Stat(ctx context.Context, name string) (ImageInfo, error)

	// Read returns the full content of the named file.
	//
	// Returns:
	//   - error: ErrNotFound if the file doesn't exist, or other I/O errors
	Read(ctx context.Context, name string) ([]byte, error)
}

// TokenMinter issues and verifies privilege tokens.
type TokenMinter interface {
	// Issue returns a new token bound to userID that expires at expiresAt.
	// Two calls never return the same token.
	Issue(userID string, expiresAt time.Time) (string, error)
	// Verify checks the token's signature and expiry and returns the user it is bound to.
	Verify(token string) (string, error)
}

// SecretStore retrieves signing secrets by key id.
type SecretStore interface {
	Lookup(keyID string) (string, error)
}
