package memory

import (
	"context"
	"sync"

	"pumpfun-sentinel/internal/storage"
)

// CursorStore is an in-memory implementation of storage.CursorStore.
type CursorStore struct {
	mu     sync.RWMutex
	cursor string
	set    bool
}

// NewCursorStore creates a new in-memory cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{}
}

// Compile-time interface check.
var _ storage.CursorStore = (*CursorStore)(nil)

// Get returns the last acknowledged cursor.
func (s *CursorStore) Get(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.set {
		return "", storage.ErrNotFound
	}
	return s.cursor, nil
}

// Set saves the cursor.
func (s *CursorStore) Set(_ context.Context, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursor = cursor
	s.set = true
	return nil
}
