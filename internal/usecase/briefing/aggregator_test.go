package briefing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"briefly/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDomainStores serves canned records and captures query arguments.
type fakeDomainStores struct {
	emails     []domain.EmailRecord
	tasks      []domain.TaskRecord
	financial  []domain.FinancialRecord
	legal      []domain.LegalRecord
	commercial []domain.CommercialRecord

	err error

	lastWindow   domain.TimeWindow
	lastStatuses []string
	lastLimit    int
}

func (f *fakeDomainStores) record(window domain.TimeWindow, statuses []string, limit int) {
	f.lastWindow = window
	f.lastStatuses = statuses
	f.lastLimit = limit
}

func (f *fakeDomainStores) QueryEmails(_ context.Context, _ string, w domain.TimeWindow, s []string, l int) ([]domain.EmailRecord, error) {
	f.record(w, s, l)
	return f.emails, f.err
}

func (f *fakeDomainStores) QueryTasks(_ context.Context, _ string, w domain.TimeWindow, s []string, l int) ([]domain.TaskRecord, error) {
	f.record(w, s, l)
	return f.tasks, f.err
}

func (f *fakeDomainStores) QueryFinancial(_ context.Context, _ string, w domain.TimeWindow, s []string, l int) ([]domain.FinancialRecord, error) {
	f.record(w, s, l)
	return f.financial, f.err
}

func (f *fakeDomainStores) QueryLegal(_ context.Context, _ string, w domain.TimeWindow, s []string, l int) ([]domain.LegalRecord, error) {
	f.record(w, s, l)
	return f.legal, f.err
}

func (f *fakeDomainStores) QueryCommercial(_ context.Context, _ string, w domain.TimeWindow, s []string, l int) ([]domain.CommercialRecord, error) {
	f.record(w, s, l)
	return f.commercial, f.err
}

func (f *fakeDomainStores) bundle() domain.DomainStores {
	return domain.DomainStores{Email: f, Task: f, Financial: f, Legal: f, Commercial: f}
}

// memConfigStore serves canned user configs for aggregation tests.
type memConfigStore struct {
	configs map[string]*domain.UserConfig
	err     error
}

func configsWithVIPs(userID string, senders ...string) *memConfigStore {
	return &memConfigStore{configs: map[string]*domain.UserConfig{
		userID: {UserID: userID, VIPSenders: senders},
	}}
}

func (s *memConfigStore) Load(_ context.Context, userID string) (*domain.UserConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	cfg, ok := s.configs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cfg, nil
}

func (s *memConfigStore) Save(context.Context, *domain.UserConfig) error { return nil }

func (s *memConfigStore) SetAgentsActive(context.Context, string, bool) error { return nil }

func (s *memConfigStore) ListActiveUsers(context.Context) ([]string, error) { return nil, nil }

func fixedTime() time.Time {
	return time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC) // Wednesday morning
}

func TestCollectNormalizesRecords(t *testing.T) {
	due := fixedTime().Add(6 * time.Hour)
	fakes := &fakeDomainStores{
		emails: []domain.EmailRecord{{
			ID: "e1", From: "ceo@corp.test", Subject: "Board deck", Snippet: "Need the final numbers",
			Status: "unread", RequiresAction: true, RespondBy: &due,
		}},
		tasks: []domain.TaskRecord{{
			ID: "t1", Title: "Sign off release", Status: "open",
			Stakeholder: "Dana", StakeholderTier: "vip", DueAt: &due,
		}},
		financial: []domain.FinancialRecord{{
			ID: "f1", Title: "Invoice 42", Status: "pending", Amount: 12500, Counterparty: "Acme",
		}},
	}

	agg := NewAggregator(fakes.bundle(), &memConfigStore{}, 20, testLogger())
	agg.now = fixedTime

	data, err := agg.Collect(context.Background(), "u1", domain.ScopeToday)
	require.NoError(t, err)

	assert.Equal(t, 3, data.TotalItems())

	email := data.Emails[0]
	assert.Equal(t, domain.DomainEmail, email.Type)
	assert.Equal(t, "Board deck", email.Title)
	assert.Equal(t, "ceo@corp.test", email.Stakeholder)
	assert.Equal(t, "high", email.Priority, "requires_action promotes unset priority")
	require.NotNil(t, email.Deadline)

	task := data.Tasks[0]
	assert.True(t, task.VIP)
	assert.Equal(t, "Dana", task.Stakeholder)

	fin := data.Financial[0]
	require.NotNil(t, fin.Amount)
	assert.Equal(t, 12500.0, *fin.Amount)
	assert.NotNil(t, fin.Raw, "original record kept for re-hydration")
}

func TestCollectWindowAndLimit(t *testing.T) {
	fakes := &fakeDomainStores{}
	agg := NewAggregator(fakes.bundle(), &memConfigStore{}, 15, testLogger())
	agg.now = fixedTime

	_, err := agg.Collect(context.Background(), "u1", domain.ScopeWeek)
	require.NoError(t, err)

	assert.Equal(t, 15, fakes.lastLimit)
	assert.Equal(t, fixedTime(), fakes.lastWindow.From)
	assert.Equal(t, fixedTime().AddDate(0, 0, 7), fakes.lastWindow.To)
	assert.NotEmpty(t, fakes.lastStatuses, "every query carries a pending-status filter")
}

func TestCollectStoreFailure(t *testing.T) {
	fakes := &fakeDomainStores{err: errors.New("connection refused")}
	agg := NewAggregator(fakes.bundle(), &memConfigStore{}, 20, testLogger())
	agg.now = fixedTime

	_, err := agg.Collect(context.Background(), "u1", domain.ScopeToday)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
}

func TestCollectFlagsVIPSenderEmails(t *testing.T) {
	fakes := &fakeDomainStores{
		emails: []domain.EmailRecord{
			{ID: "e1", From: "CEO@Corp.test", Subject: "Board numbers", Status: "unread"},
			{ID: "e2", From: "noreply@corp.test", Subject: "Weekly digest", Status: "unread"},
		},
	}
	agg := NewAggregator(fakes.bundle(), configsWithVIPs("u1", "ceo@corp.test"), 20, testLogger())
	agg.now = fixedTime

	data, err := agg.Collect(context.Background(), "u1", domain.ScopeToday)
	require.NoError(t, err)

	require.Len(t, data.Emails, 2)
	assert.True(t, data.Emails[0].VIP, "vip sender match is case-insensitive")
	assert.False(t, data.Emails[1].VIP)
}

func TestCollectConfigFailureDoesNotAbort(t *testing.T) {
	fakes := &fakeDomainStores{
		emails: []domain.EmailRecord{{ID: "e1", From: "ceo@corp.test", Subject: "Hi", Status: "unread"}},
	}
	agg := NewAggregator(fakes.bundle(), &memConfigStore{err: domain.ErrPersistence}, 20, testLogger())
	agg.now = fixedTime

	data, err := agg.Collect(context.Background(), "u1", domain.ScopeToday)
	require.NoError(t, err, "a missing vip list must not block collection")
	require.Len(t, data.Emails, 1)
	assert.False(t, data.Emails[0].VIP)
}
