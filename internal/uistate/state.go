package uistate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ashita-ai/kansoku/internal/model"
)

func (s *Store) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// KnownTaskIDs returns every task id recorded so far.
func (s *Store) KnownTaskIDs(ctx context.Context) (map[string]struct{}, error) {
	ids, err := s.strings(ctx, `SELECT task_id FROM known_tasks`)
	if err != nil {
		return nil, fmt.Errorf("uistate: known tasks: %w", err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// AddKnownTaskIDs records ids as seen. Ids already present keep their
// first-seen time.
func (s *Store) AddKnownTaskIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("uistate: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO known_tasks (task_id, first_seen_at) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("uistate: prepare known task insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	at := s.stamp()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, at); err != nil {
			return fmt.Errorf("uistate: insert known task %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("uistate: commit known tasks: %w", err)
	}
	return nil
}

// Expanded returns the expanded entry ids, oldest first.
func (s *Store) Expanded(ctx context.Context) ([]string, error) {
	ids, err := s.strings(ctx, `SELECT entry_id FROM expanded_entries ORDER BY expanded_at, entry_id`)
	if err != nil {
		return nil, fmt.Errorf("uistate: expanded entries: %w", err)
	}
	return ids, nil
}

// SetExpanded marks an entry as expanded. Repeating the call is a no-op.
func (s *Store) SetExpanded(ctx context.Context, entryID string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO expanded_entries (entry_id, expanded_at) VALUES (?, ?)`,
		entryID, s.stamp(),
	); err != nil {
		return fmt.Errorf("uistate: expand %s: %w", entryID, err)
	}
	return nil
}

// ClearExpanded collapses an entry. It returns ErrNotFound if the entry was
// not expanded.
func (s *Store) ClearExpanded(ctx context.Context, entryID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expanded_entries WHERE entry_id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("uistate: collapse %s: %w", entryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("uistate: collapse %s: %w", entryID, err)
	}
	if n == 0 {
		return fmt.Errorf("uistate: entry %s: %w", entryID, ErrNotFound)
	}
	return nil
}

// State returns the full persisted presentation state.
func (s *Store) State(ctx context.Context) (model.UIState, error) {
	expanded, err := s.Expanded(ctx)
	if err != nil {
		return model.UIState{}, err
	}
	known, err := s.strings(ctx, `SELECT task_id FROM known_tasks ORDER BY task_id`)
	if err != nil {
		return model.UIState{}, fmt.Errorf("uistate: known tasks: %w", err)
	}
	if expanded == nil {
		expanded = []string{}
	}
	if known == nil {
		known = []string{}
	}
	return model.UIState{Expanded: expanded, KnownTaskIDs: known}, nil
}

func (s *Store) strings(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v.String)
	}
	return out, rows.Err()
}
