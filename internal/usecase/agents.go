package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"briefly/internal/domain"
)

// FocusRunner executes the focus agent: a run regenerates the user's
// briefing for the requested scope (default today).
type FocusRunner struct {
	cache  BriefingRefresher
	logger *slog.Logger
}

// NewFocusRunner creates the focus agent runner.
func NewFocusRunner(cache BriefingRefresher, logger *slog.Logger) *FocusRunner {
	return &FocusRunner{cache: cache, logger: logger}
}

func (r *FocusRunner) Type() domain.AgentType { return domain.AgentFocus }

func (r *FocusRunner) Run(ctx context.Context, userID string, input map[string]any) error {
	scope := domain.ScopeToday
	if raw, ok := input["scope"].(string); ok && raw != "" {
		scope = domain.Scope(raw)
		if !domain.ValidScope(scope) {
			return fmt.Errorf("%w: unknown scope %q", domain.ErrInvalidInput, raw)
		}
	}

	b, err := r.cache.Refresh(ctx, userID, scope)
	if err != nil {
		return err
	}
	r.logger.Info("focus agent refreshed briefing",
		"user_id", userID, "scope", scope, "items", b.TotalItems, "urgent", b.UrgentCount)
	return nil
}

// ScanRunner executes one of the domain sweep agents (email, legal,
// financial, stablecoin). A run performs a bounded pending-work scan over
// the agent's domain; the extraction logic behind each store lives outside
// this subsystem.
type ScanRunner struct {
	typ    domain.AgentType
	stores domain.DomainStores
	limit  int
	logger *slog.Logger
	now    func() time.Time // for testing
}

// NewScanRunner creates a sweep runner for the given agent type.
func NewScanRunner(typ domain.AgentType, stores domain.DomainStores, limit int, logger *slog.Logger) *ScanRunner {
	return &ScanRunner{
		typ:    typ,
		stores: stores,
		limit:  limit,
		logger: logger,
		now:    time.Now,
	}
}

func (r *ScanRunner) Type() domain.AgentType { return r.typ }

func (r *ScanRunner) Run(ctx context.Context, userID string, _ map[string]any) error {
	window := domain.WindowFor(domain.ScopeToday, r.now())

	var pending int
	switch r.typ {
	case domain.AgentEmail:
		records, err := r.stores.Email.QueryEmails(ctx, userID, window, []string{"unread", "pending", "needs_reply"}, r.limit)
		if err != nil {
			return fmt.Errorf("%w: email scan: %v", domain.ErrDataUnavailable, err)
		}
		pending = len(records)
	case domain.AgentLegal:
		records, err := r.stores.Legal.QueryLegal(ctx, userID, window, []string{"pending_review", "in_review", "flagged"}, r.limit)
		if err != nil {
			return fmt.Errorf("%w: legal scan: %v", domain.ErrDataUnavailable, err)
		}
		pending = len(records)
	case domain.AgentFinancial, domain.AgentStablecoin:
		records, err := r.stores.Financial.QueryFinancial(ctx, userID, window, []string{"pending", "overdue", "awaiting_approval"}, r.limit)
		if err != nil {
			return fmt.Errorf("%w: financial scan: %v", domain.ErrDataUnavailable, err)
		}
		pending = len(records)
	default:
		return fmt.Errorf("%w: no scan defined for agent type %s", domain.ErrConfiguration, r.typ)
	}

	r.logger.Info("domain scan complete",
		"user_id", userID, "agent_type", r.typ, "pending", pending)
	return nil
}

var (
	_ domain.AgentRunner = (*FocusRunner)(nil)
	_ domain.AgentRunner = (*ScanRunner)(nil)
)
