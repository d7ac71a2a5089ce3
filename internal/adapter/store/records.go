package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"briefly/internal/domain"
)

// RecordStore implements the five per-domain query contracts using a single
// SQLite table. Records land here via the ingestion agents; the briefing
// aggregator only reads. Each row carries a status and an optional event
// timestamp (deadline, due date, close date) used for window filtering.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore returns a RecordStore backed by the shared database.
func NewRecordStore(d *DB) *RecordStore {
	return &RecordStore{db: d.db}
}

// queryPayloads fetches raw record payloads for one (user, domain), filtered
// by status and event window, capped at limit. Rows without an event
// timestamp always match the window.
func (s *RecordStore) queryPayloads(ctx context.Context, userID string, dom domain.DomainType, window domain.TimeWindow, statuses []string, limit int) ([]json.RawMessage, error) {
	var sb strings.Builder
	sb.WriteString("SELECT payload FROM domain_records WHERE user_id = ? AND domain = ?")
	args := []any{userID, string(dom)}

	if len(statuses) > 0 {
		sb.WriteString(" AND status IN (?" + strings.Repeat(",?", len(statuses)-1) + ")")
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	if !window.From.IsZero() {
		sb.WriteString(" AND (event_at IS NULL OR event_at >= ?)")
		args = append(args, window.From.UTC().Format(time.RFC3339Nano))
	}
	if !window.To.IsZero() {
		sb.WriteString(" AND (event_at IS NULL OR event_at <= ?)")
		args = append(args, window.To.UTC().Format(time.RFC3339Nano))
	}

	sb.WriteString(" ORDER BY event_at IS NULL, event_at, id")
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s records: %v", domain.ErrPersistence, dom, err)
	}
	defer rows.Close()

	var payloads []json.RawMessage
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		payloads = append(payloads, json.RawMessage(p))
	}
	return payloads, rows.Err()
}

// put upserts one record row.
func (s *RecordStore) put(ctx context.Context, userID string, dom domain.DomainType, id, status string, eventAt *time.Time, record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", dom, err)
	}

	var eventStr any
	if eventAt != nil {
		eventStr = eventAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO domain_records (user_id, domain, id, status, event_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, domain, id) DO UPDATE SET
			status = excluded.status,
			event_at = excluded.event_at,
			payload = excluded.payload`,
		userID, string(dom), id, status, eventStr, string(payload),
	)
	if err != nil {
		return fmt.Errorf("%w: save %s record: %v", domain.ErrPersistence, dom, err)
	}
	return nil
}

func (s *RecordStore) QueryEmails(ctx context.Context, userID string, window domain.TimeWindow, statuses []string, limit int) ([]domain.EmailRecord, error) {
	payloads, err := s.queryPayloads(ctx, userID, domain.DomainEmail, window, statuses, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EmailRecord, 0, len(payloads))
	for _, p := range payloads {
		var r domain.EmailRecord
		if err := json.Unmarshal(p, &r); err != nil {
			return nil, fmt.Errorf("unmarshal email record: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RecordStore) QueryTasks(ctx context.Context, userID string, window domain.TimeWindow, statuses []string, limit int) ([]domain.TaskRecord, error) {
	payloads, err := s.queryPayloads(ctx, userID, domain.DomainTask, window, statuses, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TaskRecord, 0, len(payloads))
	for _, p := range payloads {
		var r domain.TaskRecord
		if err := json.Unmarshal(p, &r); err != nil {
			return nil, fmt.Errorf("unmarshal task record: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RecordStore) QueryFinancial(ctx context.Context, userID string, window domain.TimeWindow, statuses []string, limit int) ([]domain.FinancialRecord, error) {
	payloads, err := s.queryPayloads(ctx, userID, domain.DomainFinancial, window, statuses, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FinancialRecord, 0, len(payloads))
	for _, p := range payloads {
		var r domain.FinancialRecord
		if err := json.Unmarshal(p, &r); err != nil {
			return nil, fmt.Errorf("unmarshal financial record: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RecordStore) QueryLegal(ctx context.Context, userID string, window domain.TimeWindow, statuses []string, limit int) ([]domain.LegalRecord, error) {
	payloads, err := s.queryPayloads(ctx, userID, domain.DomainLegal, window, statuses, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LegalRecord, 0, len(payloads))
	for _, p := range payloads {
		var r domain.LegalRecord
		if err := json.Unmarshal(p, &r); err != nil {
			return nil, fmt.Errorf("unmarshal legal record: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RecordStore) QueryCommercial(ctx context.Context, userID string, window domain.TimeWindow, statuses []string, limit int) ([]domain.CommercialRecord, error) {
	payloads, err := s.queryPayloads(ctx, userID, domain.DomainCommercial, window, statuses, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CommercialRecord, 0, len(payloads))
	for _, p := range payloads {
		var r domain.CommercialRecord
		if err := json.Unmarshal(p, &r); err != nil {
			return nil, fmt.Errorf("unmarshal commercial record: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// PutEmail upserts one email record.
func (s *RecordStore) PutEmail(ctx context.Context, userID string, r domain.EmailRecord) error {
	return s.put(ctx, userID, domain.DomainEmail, r.ID, r.Status, r.RespondBy, r)
}

// PutTask upserts one task record.
func (s *RecordStore) PutTask(ctx context.Context, userID string, r domain.TaskRecord) error {
	return s.put(ctx, userID, domain.DomainTask, r.ID, r.Status, r.DueAt, r)
}

// PutFinancial upserts one financial record.
func (s *RecordStore) PutFinancial(ctx context.Context, userID string, r domain.FinancialRecord) error {
	return s.put(ctx, userID, domain.DomainFinancial, r.ID, r.Status, r.DueAt, r)
}

// PutLegal upserts one legal record.
func (s *RecordStore) PutLegal(ctx context.Context, userID string, r domain.LegalRecord) error {
	return s.put(ctx, userID, domain.DomainLegal, r.ID, r.Status, r.ReviewDueAt, r)
}

// PutCommercial upserts one commercial record.
func (s *RecordStore) PutCommercial(ctx context.Context, userID string, r domain.CommercialRecord) error {
	return s.put(ctx, userID, domain.DomainCommercial, r.ID, r.Status, r.CloseAt, r)
}

// Stores bundles the record store into the aggregator's collaborator set.
func (s *RecordStore) Stores() domain.DomainStores {
	return domain.DomainStores{
		Email:      s,
		Task:       s,
		Financial:  s,
		Legal:      s,
		Commercial: s,
	}
}

var (
	_ domain.EmailStore      = (*RecordStore)(nil)
	_ domain.TaskStore       = (*RecordStore)(nil)
	_ domain.FinancialStore  = (*RecordStore)(nil)
	_ domain.LegalStore      = (*RecordStore)(nil)
	_ domain.CommercialStore = (*RecordStore)(nil)
)
