package warden

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsValidPath validates that an image name is safe to resolve inside the content root.
// It checks that the path:
//   - is not empty, ".", or "/"
//   - is relative (does not start with "/")
//   - does not end with "/"
//   - does not contain ".." (path traversal)
//   - does not contain "//" (empty segments)
//   - does not contain invalid characters: \ ? # ~
//   - is valid UTF-8
//   - does not contain "." segments (/., /./, or ending with /.)
//   - does not contain null bytes, control characters (< 0x20), DEL (0x7f), or whitespace
//
// Returns true if the path is valid, false otherwise.
func IsValidPath(p string) bool {
	if p == "" || p == "/" || p == "." {
		return false
	}

	if p[0] == '/' {
		return false
	}

	if strings.HasSuffix(p, "/") {
		return false
	}

	if strings.Contains(p, "..") {
		return false
	}

	if strings.Contains(p, "//") {
		return false
	}

	if strings.ContainsAny(p, `\?#~`) {
		return false
	}

	if !utf8.ValidString(p) {
		return false
	}

	if strings.HasPrefix(p, "./") || strings.Contains(p, "/./") || strings.HasSuffix(p, "/.") {
		return false
	}

	for _, r := range p {
		if r == 0 || r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

// PolicyError is a credential policy violation. It matches ErrInvalidInput
// under errors.Is, and Reason is safe to show to the client.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return ErrInvalidInput.Error() + ": " + e.Reason
}

func (e *PolicyError) Unwrap() error {
	return ErrInvalidInput
}

func policyErrorf(format string, args ...any) error {
	return &PolicyError{Reason: fmt.Sprintf(format, args...)}
}

const (
	maxUserIDLength   = 12
	minPasswordLength = 8
	passwordSpecials  = "!@#$"
)

// ValidateUserID enforces the account naming policy: alphanumeric, at most 12 characters.
func ValidateUserID(id string) error {
	if id == "" {
		return policyErrorf("user id is required")
	}
	if utf8.RuneCountInString(id) > maxUserIDLength {
		return policyErrorf("user id must be at most %d characters", maxUserIDLength)
	}
	for _, r := range id {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return policyErrorf("user id must be alphanumeric")
		}
	}
	return nil
}

// ValidatePassword enforces the password policy: at least 8 characters with an
// upper-case letter, a digit and one of !@#$.
func ValidatePassword(pw string) error {
	var hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, r):
			hasSpecial = true
		}
	}

	if utf8.RuneCountInString(pw) < minPasswordLength {
		return policyErrorf("password must be at least %d characters", minPasswordLength)
	}
	if !hasUpper || !hasDigit || !hasSpecial {
		return policyErrorf("password needs an upper-case letter, a digit and one of %s", passwordSpecials)
	}
	return nil
}
