package warden

import (
	"context"
	"errors"
	"fmt"
	"path"
)

// DefaultMaxFileBytes caps the size of a single image read into memory.
const DefaultMaxFileBytes int64 = 32 << 20

// TokenAuthorizer authorizes a privilege token. PrivilegeService implements it.
type TokenAuthorizer interface {
	AuthorizeToken(ctx context.Context, token string) (string, error)
}

// ContentConfig holds configuration options for ContentService.
type ContentConfig struct {
	// RequirePrivilege makes every fetch present an active privilege token.
	RequirePrivilege bool
	MaxFileBytes     int64 // default: 32 MiB
}

// ContentService serves images from an ImageStorage.
type ContentService struct {
	storage          ImageStorage
	authorizer       TokenAuthorizer
	requirePrivilege bool
	maxFileBytes     int64
}

func NewContentService(storage ImageStorage, authorizer TokenAuthorizer, cfg ContentConfig) (*ContentService, error) {
	if storage == nil {
		return nil, errors.New("new content service: image storage is required")
	}
	if cfg.RequirePrivilege && authorizer == nil {
		return nil, errors.New("new content service: authorizer is required when privilege is required")
	}

	maxFileBytes := cfg.MaxFileBytes
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}

	return &ContentService{
		storage:          storage,
		authorizer:       authorizer,
		requirePrivilege: cfg.RequirePrivilege,
		maxFileBytes:     maxFileBytes,
	}, nil
}

// FetchImage reads the named image.
//
// The method performs the following steps:
//  1. Validates the name with IsValidPath
//  2. Checks the file exists (absent files are ErrNotFound whatever the caller's privilege)
//  3. Rejects files larger than the configured maximum
//  4. Authorizes the token when privilege is required
//  5. Reads the file fully into memory
//
// Error types returned:
//   - ErrInvalidInput: empty or unsafe name
//   - ErrNotFound: no such file
//   - ErrBodyTooLarge: file exceeds the maximum size
//   - ErrUnauthorized: missing, invalid or inactive token
func (s *ContentService) FetchImage(ctx context.Context, name, token string) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, fmt.Errorf("fetch image: %w", err)
	}

	if name == "" {
		return Image{}, fmt.Errorf("fetch image: %w: url is required", ErrInvalidInput)
	}

	if !IsValidPath(name) {
		return Image{}, fmt.Errorf("fetch image %q: %w", name, ErrInvalidInput)
	}

	info, err := s.storage.Stat(ctx, name)
	if err != nil {
		return Image{}, fmt.Errorf("fetch image %s: %w", name, err)
	}

	if info.Size > s.maxFileBytes {
		return Image{}, fmt.Errorf("fetch image %s: %w: %d bytes", name, ErrBodyTooLarge, info.Size)
	}

	if s.requirePrivilege {
		if _, err := s.authorizer.AuthorizeToken(ctx, token); err != nil {
			return Image{}, fmt.Errorf("fetch image %s: %w", name, err)
		}
	}

	data, err := s.storage.Read(ctx, name)
	if err != nil {
		return Image{}, fmt.Errorf("fetch image %s: %w", name, err)
	}

	return Image{
		Name:        path.Base(name),
		ContentType: info.ContentType,
		Data:        data,
	}, nil
}
