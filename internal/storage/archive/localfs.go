// internal/storage/archive/localfs.go
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LocalFS implements Versioned for the local filesystem. Versions are the
// SHA-256 of the file content. Compare-and-swap is serialized within the
// process; writes land through a temp file and rename.
type LocalFS struct {
	basePath string
	mu       sync.Mutex
}

// NewLocalFS creates a new LocalFS storage
func NewLocalFS(basePath string) (*LocalFS, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating base path: %w", err)
	}
	return &LocalFS{basePath: basePath}, nil
}

// ContentVersion returns the version LocalFS assigns to data.
func ContentVersion(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (l *LocalFS) fullPath(path string) string {
	return filepath.Join(l.basePath, path)
}

func (l *LocalFS) Write(ctx context.Context, path string, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeAtomic(path, data)
}

func (l *LocalFS) writeAtomic(path string, data []byte) error {
	fullPath := l.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("creating directories: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), "."+filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (l *LocalFS) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(l.fullPath(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	return data, err
}

// ReadVersion returns the file content and its content hash.
func (l *LocalFS) ReadVersion(ctx context.Context, path string) ([]byte, string, error) {
	data, err := l.Read(ctx, path)
	if err != nil {
		return nil, "", err
	}
	return data, ContentVersion(data), nil
}

// WriteIfMatch replaces the file only if its content hash equals expected.
func (l *LocalFS) WriteIfMatch(ctx context.Context, path string, data []byte, expected string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := ""
	existing, err := os.ReadFile(l.fullPath(path))
	switch {
	case err == nil:
		current = ContentVersion(existing)
	case errors.Is(err, os.ErrNotExist):
	default:
		return "", fmt.Errorf("reading current version: %w", err)
	}

	if current != expected {
		return "", ErrVersionMismatch
	}
	if err := l.writeAtomic(path, data); err != nil {
		return "", err
	}
	return ContentVersion(data), nil
}

func (l *LocalFS) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	searchPath := l.fullPath(prefix)

	err := filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			relPath, _ := filepath.Rel(l.basePath, path)
			paths = append(paths, filepath.ToSlash(relPath))
		}
		return nil
	})

	if os.IsNotExist(err) {
		return []string{}, nil
	}
	return paths, err
}

func (l *LocalFS) Delete(ctx context.Context, path string) error {
	err := os.Remove(l.fullPath(path))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotExist
	}
	return err
}

func (l *LocalFS) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(l.fullPath(path))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}
