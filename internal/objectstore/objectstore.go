// Package objectstore stores uploaded element files and generated reports
// behind a small key/value interface with a local disk and a Google Cloud
// Storage backend.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/asylumproject/asylum-server/internal/domain"
)

// ErrNotFound is returned when a key has no object.
var ErrNotFound = errors.New("object not found")

// Object describes a stored object.
type Object struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url"`
}

// Store is a flat key space of immutable blobs.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	URL(key string) string
}

// ElementKey is the key of an uploaded element file:
// story{S}/mapPoint{M}/{kind}/{filename}.
func ElementKey(storyID, mapPointID int64, kind domain.ElementKind, fileName string) string {
	return fmt.Sprintf("story%d/mapPoint%d/%s/%s", storyID, mapPointID, kind, path.Base(fileName))
}

// cleanKey rejects keys that could escape the store root.
func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("empty object key")
	}
	if c := path.Clean(key); c != key || strings.HasPrefix(c, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return key, nil
}

// joinURL appends key to base with a single slash.
func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
