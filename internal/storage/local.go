package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultDirName is the cache directory created under os.TempDir() when no
// directory is configured.
const DefaultDirName = "video_thumbnails"

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// LocalStorage implements the Storage interface using local disk.
// Reads and writes are not locked: two generations racing on the same
// entry may both encode, and one may see the other's partial file.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a new LocalStorage instance.
// If dir is empty, DefaultDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = DefaultDir()
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	return &LocalStorage{dir: dir}, nil
}

// DefaultDir returns the default cache directory.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), DefaultDirName)
}

// Dir returns the cache directory path.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// Path returns the location of name inside the cache directory.
func (s *LocalStorage) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether a file exists at path.
func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

// Open reads a stored file and returns a reader.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return f, nil
}

// Cleanup removes the specified files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) Cleanup(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove file %s: %w", p, err)
			}
		}
	}
	return firstErr
}
