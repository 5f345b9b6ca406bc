package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Local stores objects as files under a base directory and serves them
// from publicBaseURL.
type Local struct {
	basePath      string
	publicBaseURL string
	mu            sync.RWMutex
}

// NewLocal creates the base directory if needed.
func NewLocal(basePath, publicBaseURL string) (*Local, error) {
	if basePath == "" {
		return nil, errors.New("object store path cannot be empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create object store directory: %w", err)
	}
	return &Local{basePath: basePath, publicBaseURL: publicBaseURL}, nil
}

// Put writes the object through a temp file and renames it into place.
func (l *Local) Put(_ context.Context, key string, r io.Reader, contentType string) (*Object, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	dst := l.path(key)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("create object directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp object: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write object: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("commit object: %w", err)
	}

	return &Object{Key: key, Size: n, ContentType: contentType, URL: l.URL(key)}, nil
}

// Get opens the object for reading.
func (l *Local) Get(_ context.Context, key string) (io.ReadCloser, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	f, err := os.Open(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete removes the object. A missing object is not an error.
func (l *Local) Delete(_ context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Remove(l.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Exists reports whether the object is present.
func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	key, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, err = os.Stat(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// URL returns the public link for key.
func (l *Local) URL(key string) string {
	return joinURL(l.publicBaseURL, key)
}

func (l *Local) path(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}
