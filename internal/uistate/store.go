// Package uistate persists presentation state across restarts: which
// journal entries a viewer expanded and which task ids were already seen.
// It uses an embedded SQLite database.
package uistate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("uistate: not found")

// Store wraps the SQLite handle.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("uistate: empty database path")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("uistate: open %s: %w", path, err)
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("uistate: ping: %w", err)
	}

	s := &Store{db: db, logger: logger, now: time.Now}
	if err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
