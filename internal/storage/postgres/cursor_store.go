package postgres

import (
	"context"
	"fmt"

	"pumpfun-sentinel/internal/storage"
)

// CursorStore is a PostgreSQL implementation of storage.CursorStore.
// Single-row table: the feed resume marker survives process restarts so
// a crash between fetch and claim re-fetches the same range.
type CursorStore struct {
	pool *Pool
}

// NewCursorStore creates a new PostgreSQL cursor store.
func NewCursorStore(pool *Pool) *CursorStore {
	return &CursorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CursorStore = (*CursorStore)(nil)

// Get returns the last acknowledged cursor.
func (s *CursorStore) Get(ctx context.Context) (string, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT cursor FROM feed_cursor LIMIT 1
	`)

	var cursor string
	if err := row.Scan(&cursor); err != nil {
		if isNotFoundError(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get feed cursor: %w", err)
	}
	return cursor, nil
}

// Set saves the cursor. Uses upsert to handle the initial insert and
// subsequent updates.
func (s *CursorStore) Set(ctx context.Context, cursor string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feed_cursor (id, cursor, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE
		SET cursor = EXCLUDED.cursor,
		    updated_at = NOW()
	`, cursor)
	if err != nil {
		return fmt.Errorf("set feed cursor: %w", err)
	}
	return nil
}
