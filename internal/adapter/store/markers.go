package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"briefly/internal/domain"
)

// RunMarkerStore implements domain.RunMarkerStore using SQLite.
type RunMarkerStore struct {
	db *sql.DB
}

// NewRunMarkerStore returns a RunMarkerStore backed by the shared database.
func NewRunMarkerStore(d *DB) *RunMarkerStore {
	return &RunMarkerStore{db: d.db}
}

func (s *RunMarkerStore) LastRun(_ context.Context, name string) (time.Time, bool, error) {
	row := s.db.QueryRow("SELECT last_run FROM run_markers WHERE name = ?", name)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("%w: load run marker: %v", domain.ErrPersistence, err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse run marker %q: %w", name, err)
	}
	return t, true, nil
}

func (s *RunMarkerStore) SetLastRun(_ context.Context, name string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO run_markers (name, last_run) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET last_run = excluded.last_run`,
		name, t.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: save run marker: %v", domain.ErrPersistence, err)
	}
	return nil
}

var _ domain.RunMarkerStore = (*RunMarkerStore)(nil)
