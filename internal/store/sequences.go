package store

import (
	"context"
	"fmt"
)

// Sequences is a naming sequence persisted in SQLite. Each Next is a single
// atomic upsert, so counters survive restarts and are shared by every
// process using the same database file.
type Sequences struct {
	store *Store
}

// Sequences returns the store-backed naming sequence.
func (s *Store) Sequences() *Sequences {
	return &Sequences{store: s}
}

// Next increments and returns the counter for key.
func (q *Sequences) Next(ctx context.Context, key string) (int64, error) {
	var n int64
	err := q.store.db.QueryRowContext(ctx, `
	INSERT INTO naming_sequences (key, value) VALUES (?, 1)
	ON CONFLICT(key) DO UPDATE SET value = value + 1
	RETURNING value
	`, key).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", key, err)
	}
	return n, nil
}
