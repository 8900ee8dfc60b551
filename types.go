package warden

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// UngrantedKey is the privilege key value of a user that has never been granted privileges.
const UngrantedKey = "0"

// PrivilegeKey is a time-boxed grant stored on a user record.
// ExpiresAt holds unix seconds; 0 means the key was never granted.
type PrivilegeKey struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expiry_time"`
}

// KeyState is the lifecycle state of a privilege key.
type KeyState string

const (
	KeyUngranted KeyState = "ungranted"
	KeyActive    KeyState = "active"
	KeyExpired   KeyState = "expired"
)

// State maps the key onto exactly one of the three key states at the given time.
func (k PrivilegeKey) State(now time.Time) KeyState {
	if k.Value == UngrantedKey || k.Value == "" {
		return KeyUngranted
	}
	if now.Unix() < k.ExpiresAt {
		return KeyActive
	}
	return KeyExpired
}

// Valid reports whether the key is active at the given time.
func (k PrivilegeKey) Valid(now time.Time) bool {
	return k.State(now) == KeyActive
}

// Expiry returns ExpiresAt as a time.Time, or the zero time for a key that was never granted.
func (k PrivilegeKey) Expiry() time.Time {
	if k.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(k.ExpiresAt, 0)
}

// NewUngrantedKey returns the key every user starts with.
func NewUngrantedKey() PrivilegeKey {
	return PrivilegeKey{Value: UngrantedKey, ExpiresAt: 0}
}

type User struct {
	ID           string       `json:"id"`
	PasswordHash string       `json:"pw"`
	Key          PrivilegeKey `json:"key"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Session binds an opaque session id to a user until ExpiresAt.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// Image is a file read from the content root.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// Tables holds configurable table names for the SQL user stores.
type Tables struct {
	Users string `mapstructure:"users"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	if t.Users == "" {
		return errors.New("validate tables: users table name cannot be empty")
	}

	if !IsValidTableName(t.Users) {
		return fmt.Errorf("validate tables: invalid users table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", t.Users)
	}

	return nil
}
