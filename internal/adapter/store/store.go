package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the shared SQLite handle used by all stores.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at dbPath and runs the
// schema migration.
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return &DB{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS user_configs (
			user_id       TEXT PRIMARY KEY,
			suspended     INTEGER NOT NULL DEFAULT 0,
			agents_active INTEGER NOT NULL DEFAULT 0,
			agents        TEXT NOT NULL DEFAULT '{}',
			vip_senders   TEXT NOT NULL DEFAULT '[]',
			updated_at    TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS briefings (
			user_id      TEXT NOT NULL,
			scope        TEXT NOT NULL,
			payload      TEXT NOT NULL,
			generated_at TEXT NOT NULL,
			expires_at   TEXT NOT NULL,
			PRIMARY KEY (user_id, scope)
		);
		CREATE TABLE IF NOT EXISTS run_markers (
			name     TEXT PRIMARY KEY,
			last_run TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS domain_records (
			user_id  TEXT NOT NULL,
			domain   TEXT NOT NULL,
			id       TEXT NOT NULL,
			status   TEXT NOT NULL DEFAULT '',
			event_at TEXT,
			payload  TEXT NOT NULL,
			PRIMARY KEY (user_id, domain, id)
		);
		CREATE INDEX IF NOT EXISTS idx_domain_records_lookup
			ON domain_records (user_id, domain, status);
	`)
	return err
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}
