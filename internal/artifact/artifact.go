// Package artifact stores packaged project archives and returns locators
// for retrieving them later.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrStorageFailed is returned when an artifact cannot be written.
var ErrStorageFailed = errors.New("failed to store artifact")

// Store persists artifact bytes under a job id.
type Store interface {
	// Store writes content and returns an opaque locator for it.
	Store(ctx context.Context, jobID uuid.UUID, content []byte) (string, error)
}

// LocalStore writes archives to a directory as {job_id}.zip.
type LocalStore struct {
	dir string
}

// Ensure LocalStore implements Store
var _ Store = (*LocalStore)(nil)

// NewLocalStore creates dir if needed and returns a store rooted there.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: storage directory cannot be empty", ErrStorageFailed)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrStorageFailed, dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Path returns where the archive for jobID is written.
func (s *LocalStore) Path(jobID uuid.UUID) string {
	return filepath.Join(s.dir, jobID.String()+".zip")
}

// Store writes content to a temporary file and renames it into place, so a
// reader never observes a partial archive. The locator is the file path.
func (s *LocalStore) Store(ctx context.Context, jobID uuid.UUID, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if jobID == uuid.Nil {
		return "", fmt.Errorf("%w: job id cannot be empty", ErrStorageFailed)
	}

	tmp, err := os.CreateTemp(s.dir, "."+jobID.String()+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %w", ErrStorageFailed, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("%w: write: %w", ErrStorageFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close: %w", ErrStorageFailed, err)
	}

	dest := s.Path(jobID)
	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("%w: rename: %w", ErrStorageFailed, err)
	}
	return dest, nil
}
