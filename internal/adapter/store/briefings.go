package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"briefly/internal/domain"
)

// BriefingStore implements domain.BriefingStore using SQLite. The full
// briefing travels as a JSON payload; generated_at and expires_at are
// duplicated into columns for inspection and cleanup queries.
type BriefingStore struct {
	db *sql.DB
}

// NewBriefingStore returns a BriefingStore backed by the shared database.
func NewBriefingStore(d *DB) *BriefingStore {
	return &BriefingStore{db: d.db}
}

func (s *BriefingStore) GetBriefing(_ context.Context, userID string, scope domain.Scope) (*domain.FocusBriefing, error) {
	row := s.db.QueryRow(
		"SELECT payload FROM briefings WHERE user_id = ? AND scope = ?", userID, string(scope),
	)

	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: briefing %s/%s", domain.ErrNotFound, userID, scope)
		}
		return nil, fmt.Errorf("%w: load briefing: %v", domain.ErrPersistence, err)
	}

	var b domain.FocusBriefing
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return nil, fmt.Errorf("unmarshal briefing: %w", err)
	}
	return &b, nil
}

func (s *BriefingStore) PutBriefing(_ context.Context, b *domain.FocusBriefing) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal briefing: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO briefings (user_id, scope, payload, generated_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, scope) DO UPDATE SET
			payload = excluded.payload,
			generated_at = excluded.generated_at,
			expires_at = excluded.expires_at`,
		b.UserID, string(b.Scope), string(payload),
		b.GeneratedAt.UTC().Format(time.RFC3339Nano),
		b.ExpiresAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: save briefing: %v", domain.ErrPersistence, err)
	}
	return nil
}

var _ domain.BriefingStore = (*BriefingStore)(nil)
