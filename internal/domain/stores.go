package domain

import (
	"context"
	"time"
)

// Domain records. Each store returns its own record shape; the aggregator
// normalizes them into CandidateItems.

// EmailRecord is one pending email surfaced by the email store.
type EmailRecord struct {
	ID             string     `json:"id"`
	From           string     `json:"from"`
	Subject        string     `json:"subject"`
	Snippet        string     `json:"snippet,omitempty"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority,omitempty"`
	RequiresAction bool       `json:"requires_action"`
	ReceivedAt     time.Time  `json:"received_at"`
	RespondBy      *time.Time `json:"respond_by,omitempty"`
}

// TaskRecord is one incomplete task.
type TaskRecord struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Notes           string     `json:"notes,omitempty"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority,omitempty"`
	Stakeholder     string     `json:"stakeholder,omitempty"`
	StakeholderTier string     `json:"stakeholder_tier,omitempty"` // "vip", "standard"
	DueAt           *time.Time `json:"due_at,omitempty"`
}

// FinancialRecord is one unresolved financial obligation (invoice, payment,
// stablecoin settlement).
type FinancialRecord struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority,omitempty"`
	Amount       float64    `json:"amount"`
	Currency     string     `json:"currency,omitempty"`
	Counterparty string     `json:"counterparty,omitempty"`
	DueAt        *time.Time `json:"due_at,omitempty"`
}

// LegalRecord is one contract or matter awaiting review.
type LegalRecord struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Summary      string     `json:"summary,omitempty"`
	Status       string     `json:"status"`
	OverallRisk  string     `json:"overall_risk,omitempty"` // "critical", "high", "medium", "low"
	Counterparty string     `json:"counterparty,omitempty"`
	ReviewDueAt  *time.Time `json:"review_due_at,omitempty"`
}

// CommercialRecord is one open deal or commercial follow-up.
type CommercialRecord struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority,omitempty"`
	Stage       string     `json:"stage,omitempty"`
	Value       float64    `json:"value,omitempty"`
	Account     string     `json:"account,omitempty"`
	CloseAt     *time.Time `json:"close_at,omitempty"`
}

// Per-domain read-only query contracts. Every query is bounded (limit),
// windowed, and status-filtered; implementations perform no writes on
// behalf of this subsystem.

type EmailStore interface {
	QueryEmails(ctx context.Context, userID string, window TimeWindow, statuses []string, limit int) ([]EmailRecord, error)
}

type TaskStore interface {
	QueryTasks(ctx context.Context, userID string, window TimeWindow, statuses []string, limit int) ([]TaskRecord, error)
}

type FinancialStore interface {
	QueryFinancial(ctx context.Context, userID string, window TimeWindow, statuses []string, limit int) ([]FinancialRecord, error)
}

type LegalStore interface {
	QueryLegal(ctx context.Context, userID string, window TimeWindow, statuses []string, limit int) ([]LegalRecord, error)
}

type CommercialStore interface {
	QueryCommercial(ctx context.Context, userID string, window TimeWindow, statuses []string, limit int) ([]CommercialRecord, error)
}

// DomainStores bundles the five per-domain collaborators.
type DomainStores struct {
	Email      EmailStore
	Task       TaskStore
	Financial  FinancialStore
	Legal      LegalStore
	Commercial CommercialStore
}

// AgentSettings is the per-agent configuration snapshot an instance is
// created with. Changing settings forces a stop-then-recreate cycle.
type AgentSettings struct {
	Enabled bool              `json:"enabled"`
	Options map[string]string `json:"options,omitempty"`
}

// UserConfig is everything the platform knows about one user's agents.
type UserConfig struct {
	UserID       string                      `json:"user_id"`
	Suspended    bool                        `json:"suspended"`
	AgentsActive bool                        `json:"agents_active"` // durable flag consulted on restart
	Agents       map[AgentType]AgentSettings `json:"agents"`
	VIPSenders   []string                    `json:"vip_senders,omitempty"`
}

// AgentEnabled reports whether the user has the given agent type enabled.
func (c *UserConfig) AgentEnabled(t AgentType) bool {
	s, ok := c.Agents[t]
	return ok && s.Enabled
}

// ConfigStore persists per-user agent configuration and the durable
// active flag used by boot-time auto-start.
type ConfigStore interface {
	Load(ctx context.Context, userID string) (*UserConfig, error)
	Save(ctx context.Context, cfg *UserConfig) error
	SetAgentsActive(ctx context.Context, userID string, active bool) error
	// ListActiveUsers enumerates users whose durable active flag is set.
	ListActiveUsers(ctx context.Context) ([]string, error)
}

// BriefingStore persists generated briefings behind the in-memory cache.
type BriefingStore interface {
	GetBriefing(ctx context.Context, userID string, scope Scope) (*FocusBriefing, error)
	PutBriefing(ctx context.Context, b *FocusBriefing) error
}

// RunMarkerStore records the last successful run date of named recurring
// jobs so a restart near the trigger time neither skips nor doubles a day.
type RunMarkerStore interface {
	LastRun(ctx context.Context, name string) (time.Time, bool, error)
	SetLastRun(ctx context.Context, name string, t time.Time) error
}
