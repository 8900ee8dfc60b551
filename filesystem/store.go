// Package filesystem provides the read-only image storage backend for warden.
// All lookups are confined to the content root through os.Root, and content
// types are detected from file extensions.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/sagarc03/warden"
)

// Store serves files from a sandboxed root directory.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Stat returns the size and content type of a file.
// Returns warden.ErrNotFound if the file does not exist or is a directory.
func (s *Store) Stat(ctx context.Context, name string) (warden.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return warden.ImageInfo{}, err
	}

	info, err := s.root.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return warden.ImageInfo{}, warden.ErrNotFound
		}
		return warden.ImageInfo{}, fmt.Errorf("stat file: %w", err)
	}

	if !info.Mode().IsRegular() {
		return warden.ImageInfo{}, warden.ErrNotFound
	}

	return warden.ImageInfo{
		Name:        name,
		Size:        info.Size(),
		ContentType: detectContentType(name),
	}, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Read returns the full content of a file. Returns warden.ErrNotFound if the
// file does not exist. The read respects context cancellation.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.root.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, warden.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close file", "path", name, "err", closeErr)
		}
	}()

	data, err := io.ReadAll(&ctxReader{ctx: ctx, r: f})
	if err != nil {
		return nil, fmt.Errorf("could not read file contents: %w", err)
	}

	return data, nil
}

func detectContentType(path string) string {
	ext := filepath.Ext(path)
	contentType := mime.TypeByExtension(ext)

	if contentType == "" {
		return "application/octet-stream"
	}

	return contentType
}
