package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps artifacts as files in a directory.
type LocalStore struct {
	dir string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates a store rooted at dir. The directory is created on
// the first commit.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Location returns the directory.
func (s *LocalStore) Location() string {
	return s.dir
}

// Get reads an artifact.
func (s *LocalStore) Get(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found in %s", ErrPreconditionMissing, name, s.dir)
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// Exists reports whether an artifact file is present.
func (s *LocalStore) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat %s: %w", name, err)
	}
}

// Commit writes each entry to a temporary file, syncs it and renames it into
// place, in order. The last entry is removed before anything is written.
func (s *LocalStore) Commit(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create %s: %w", ErrPersistence, s.dir, err)
	}

	marker := filepath.Join(s.dir, entries[len(entries)-1].Name)
	if err := os.Remove(marker); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to remove %s: %w", ErrPersistence, marker, err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if err := s.writeFile(e); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}
	return syncDir(s.dir)
}

func (s *LocalStore) writeFile(e Entry) error {
	tmp, err := os.CreateTemp(s.dir, "."+e.Name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", e.Name, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // no-op after a successful rename
	}()

	if _, err := tmp.Write(e.Data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", e.Name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", e.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", e.Name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, e.Name)); err != nil {
		return fmt.Errorf("failed to rename %s: %w", e.Name, err)
	}
	return nil
}

// syncDir flushes directory entries so renames survive a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir) //nolint:gosec // artifact directory chosen by the user
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %w", ErrPersistence, dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return fmt.Errorf("%w: failed to sync %s: %w", ErrPersistence, dir, err)
	}
	return nil
}
