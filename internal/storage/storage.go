// Package storage provides the preview cache directory and optional
// publishing of finished artifacts. It defines the Storage and Publisher
// interfaces (ports) and implementations for local disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for the on-disk preview cache. A cache entry
// is nothing more than a file at a deterministic path; there is no index.
type Storage interface {
	// Dir returns the directory entries are stored in.
	Dir() string

	// Path returns the absolute location of the named entry.
	Path(name string) string

	// Exists reports whether a file exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Open reads a stored file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Cleanup removes the specified files.
	// It continues cleanup even if some files fail to delete.
	Cleanup(ctx context.Context, paths []string) error
}

// Publisher uploads finished artifacts to durable remote storage.
type Publisher interface {
	// Publish uploads data under key and returns its public URL.
	Publish(ctx context.Context, key string, data io.Reader) (url string, err error)
}
