package warden

import "errors"

var (
	// ErrNotFound is returned when a user or image does not exist
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs, such as a failed store read or write
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when authentication or authorization fails
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict is returned when the requested change collides with existing state,
	// such as a duplicate registration or a repeated privilege grant
	ErrConflict = errors.New("conflict")
	// ErrMalformedRequest is returned when a request cannot be parsed
	ErrMalformedRequest = errors.New("malformed request")
	// ErrBodyTooLarge is returned when a request or file exceeds the configured size limit
	ErrBodyTooLarge = errors.New("body too large")
)
