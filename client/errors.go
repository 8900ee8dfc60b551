package client

import (
	"errors"
	"fmt"

	"github.com/sagarc03/warden/protocol"
)

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileExists   = errors.New("profile already exists")
)

// Errors for configuration and input validation.
var (
	ErrConfigRequired   = errors.New("config is required")
	ErrUsernameRequired = errors.New("username is required")
	ErrURLRequired      = errors.New("image url is required")
)

// ResponseError is a response whose status is not the one the operation expects.
type ResponseError struct {
	Status int
	Body   string
}

func (e *ResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, protocol.StatusText(e.Status))
	}
	return fmt.Sprintf("server returned %d %s: %s", e.Status, protocol.StatusText(e.Status), e.Body)
}
