package intake

import (
	"context"

	"github.com/p-blackswan/tally/internal/store"
)

// SQLStore adapts the SQLite store to Store.
type SQLStore struct {
	*store.Store
}

// NewSQLStore wraps s.
func NewSQLStore(s *store.Store) SQLStore {
	return SQLStore{Store: s}
}

// Atomically implements Store.
func (s SQLStore) Atomically(ctx context.Context, fn func(Repositories) error) error {
	return s.Store.Atomically(ctx, func(r *store.Repo) error { return fn(r) })
}
