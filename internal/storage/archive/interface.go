// internal/storage/archive/interface.go
package archive

import (
	"context"
	"errors"
)

var (
	// ErrNotExist is returned when no object is stored at a path.
	ErrNotExist = errors.New("archive: object does not exist")

	// ErrVersionMismatch is returned by WriteIfMatch when the stored version
	// differs from the expected one.
	ErrVersionMismatch = errors.New("archive: version mismatch")
)

// Storage defines the interface for cold/archive storage backends
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Versioned is a Storage that supports compare-and-swap writes.
// Versions are opaque; the empty version means "absent".
type Versioned interface {
	Storage

	// ReadVersion returns the data and its current version, or ErrNotExist.
	ReadVersion(ctx context.Context, path string) ([]byte, string, error)

	// WriteIfMatch stores data only if the current version equals expected.
	// It returns the new version, or ErrVersionMismatch.
	WriteIfMatch(ctx context.Context, path string, data []byte, expected string) (string, error)
}
