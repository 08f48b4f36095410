// Package memory keeps archived pages in memory, for tests and development.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Archive stores pages in a map and returns memory:// URIs.
type Archive struct {
	mu    sync.RWMutex
	pages map[string][]byte
}

// New creates an empty in-memory archive.
func New() *Archive {
	return &Archive{pages: make(map[string][]byte)}
}

// Put stores a copy of data under key.
func (a *Archive) Put(_ context.Context, key string, _ string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages[key] = append([]byte(nil), data...)
	return fmt.Sprintf("memory://%s", key), nil
}

// Get returns the stored page, for assertions in tests.
func (a *Archive) Get(key string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.pages[key]
	return data, ok
}

// Len reports the number of archived pages.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.pages)
}
