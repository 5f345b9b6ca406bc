package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// Memory is an in-process Store for tests. FailPut makes every Put fail.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	FailPut error
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}}
}

// Put stores a copy of the payload.
func (m *Memory) Put(_ context.Context, key string, r io.Reader, contentType string) (*Object, error) {
	if m.FailPut != nil {
		return nil, m.FailPut
	}
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return &Object{Key: key, Size: int64(len(data)), ContentType: contentType, URL: m.URL(key)}, nil
}

// Get returns a reader over the stored payload.
func (m *Memory) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete drops the key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Exists reports whether key is stored.
func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

// URL returns a memory:// link.
func (m *Memory) URL(key string) string {
	return "memory://" + key
}

// Keys lists stored keys.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

// ErrInjected is a ready-made FailPut value.
var ErrInjected = errors.New("injected object store failure")

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Local)(nil)
	_ Store = (*GCS)(nil)
)
