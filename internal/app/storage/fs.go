package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// fsStore implements the BlobStore interface on top of a local directory.
// Writes go through a temp file plus rename so a crash mid-flush never leaves
// a truncated snapshot behind.
type fsStore struct {
	dir string
}

// newFSStore creates the snapshot directory if needed and returns the store.
func newFSStore(dir string) (*fsStore, error) {
	if dir == "" {
		return nil, errors.New("snapshot directory must not be empty")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
	}

	return &fsStore{dir: dir}, nil
}

// Load reads the blob stored under key.
func (s *fsStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	return data, nil
}

// Save writes data under key atomically.
func (s *fsStore) Save(ctx context.Context, key string, data []byte) error {
	target := s.path(key)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", key, err)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit snapshot %s: %w", key, err)
	}

	return nil
}

// Delete removes the blob stored under key.
func (s *fsStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete snapshot %s: %w", key, err)
	}
	return nil
}

// path maps a key to a file inside the snapshot directory. Base strips any
// separators so a key can never escape the directory.
func (s *fsStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}
