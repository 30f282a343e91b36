// Package store is the SQLite persistence layer for users, workflows, tasks,
// messages, naming corrections and naming sequences.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repo runs repository queries against a connection or an open transaction.
type Repo struct {
	q   queryer
	now func() time.Time
}

// Store manages the SQLite database.
type Store struct {
	*Repo
	db     *sql.DB
	logger zerolog.Logger
	// mu serializes write transactions so a read-then-write never has to
	// upgrade its lock against another in-process writer.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.Repo.now = now }
}

// New opens (or creates) the SQLite database and runs migrations.
func New(dbPath string, logger zerolog.Logger, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		Repo:   &Repo{q: db, now: time.Now},
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
	for _, o := range opts {
		o(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	s.logger.Info().Str("path", dbPath).Msg("store initialized")
	return s, nil
}

// Atomically runs fn inside a transaction. fn's Repo sees its own writes; the
// transaction commits only if fn returns nil.
func (s *Store) Atomically(ctx context.Context, fn func(*Repo) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("rollback failed")
			}
		}
	}()

	if err = fn(&Repo{q: tx, now: s.Repo.now}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PingContext checks the database connection.
func (s *Store) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database connection (for testing)
func (s *Store) DB() *sql.DB {
	return s.db
}

func (r *Repo) nowMs() int64 {
	return r.now().UnixMilli()
}

func fromMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
