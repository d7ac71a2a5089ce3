package briefing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"briefly/internal/domain"
)

// Pending-work status filters per domain. Only unresolved records are
// eligible for a briefing.
var (
	emailStatuses      = []string{"unread", "pending", "needs_reply"}
	taskStatuses       = []string{"open", "in_progress", "blocked"}
	financialStatuses  = []string{"pending", "overdue", "awaiting_approval"}
	legalStatuses      = []string{"pending_review", "in_review", "flagged"}
	commercialStatuses = []string{"open", "negotiation", "at_risk"}
)

// Aggregator pulls bounded, windowed, status-filtered candidate sets from
// the five domain stores and normalizes them into one common shape. Pure
// read path; performs no writes. The user's VIP sender list flags email
// candidates so both prioritization paths weigh them.
type Aggregator struct {
	stores   domain.DomainStores
	configs  domain.ConfigStore
	perLimit int
	logger   *slog.Logger
	now      func() time.Time // for testing
}

// NewAggregator creates an Aggregator with a per-domain result cap.
func NewAggregator(stores domain.DomainStores, configs domain.ConfigStore, perDomainLimit int, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		stores:   stores,
		configs:  configs,
		perLimit: perDomainLimit,
		logger:   logger,
		now:      time.Now,
	}
}

// Collect queries all five domains for the user within the scope's window.
// A failed store query aborts the whole pass with ErrDataUnavailable so the
// caller never prioritizes a partial picture.
func (a *Aggregator) Collect(ctx context.Context, userID string, scope domain.Scope) (*domain.CollectedData, error) {
	const op = "aggregator.Collect"
	now := a.now()
	window := domain.WindowFor(scope, now)

	data := &domain.CollectedData{
		UserID: userID,
		Scope:  scope,
		Window: window,
	}

	vips := a.vipSenders(ctx, userID)

	emails, err := a.stores.Email.QueryEmails(ctx, userID, window, emailStatuses, a.perLimit)
	if err != nil {
		return nil, dataErr(op, domain.DomainEmail, err)
	}
	for _, r := range emails {
		data.Emails = append(data.Emails, normalizeEmail(r, vips))
	}

	tasks, err := a.stores.Task.QueryTasks(ctx, userID, window, taskStatuses, a.perLimit)
	if err != nil {
		return nil, dataErr(op, domain.DomainTask, err)
	}
	for _, r := range tasks {
		data.Tasks = append(data.Tasks, normalizeTask(r))
	}

	financial, err := a.stores.Financial.QueryFinancial(ctx, userID, window, financialStatuses, a.perLimit)
	if err != nil {
		return nil, dataErr(op, domain.DomainFinancial, err)
	}
	for _, r := range financial {
		data.Financial = append(data.Financial, normalizeFinancial(r))
	}

	legal, err := a.stores.Legal.QueryLegal(ctx, userID, window, legalStatuses, a.perLimit)
	if err != nil {
		return nil, dataErr(op, domain.DomainLegal, err)
	}
	for _, r := range legal {
		data.Legal = append(data.Legal, normalizeLegal(r))
	}

	commercial, err := a.stores.Commercial.QueryCommercial(ctx, userID, window, commercialStatuses, a.perLimit)
	if err != nil {
		return nil, dataErr(op, domain.DomainCommercial, err)
	}
	for _, r := range commercial {
		data.Commercial = append(data.Commercial, normalizeCommercial(r))
	}

	a.logger.Debug("aggregation complete",
		"user_id", userID, "scope", scope, "total_items", data.TotalItems())
	return data, nil
}

// vipSenders loads the user's VIP sender list as a lowercase lookup set.
// An unavailable config is not fatal to collection; emails simply carry no
// VIP flag for that pass.
func (a *Aggregator) vipSenders(ctx context.Context, userID string) map[string]bool {
	cfg, err := a.configs.Load(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			a.logger.Warn("vip sender list unavailable", "user_id", userID, "error", err)
		}
		return nil
	}
	if len(cfg.VIPSenders) == 0 {
		return nil
	}
	vips := make(map[string]bool, len(cfg.VIPSenders))
	for _, sender := range cfg.VIPSenders {
		vips[strings.ToLower(sender)] = true
	}
	return vips
}

func dataErr(op string, dom domain.DomainType, err error) error {
	return domain.NewDomainError(op, domain.ErrDataUnavailable,
		fmt.Sprintf("%s store: %v", dom, err))
}

func rawOf(record any) json.RawMessage {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil
	}
	return raw
}

func normalizeEmail(r domain.EmailRecord, vips map[string]bool) domain.CandidateItem {
	item := domain.CandidateItem{
		ID:          r.ID,
		Type:        domain.DomainEmail,
		Title:       r.Subject,
		Description: r.Snippet,
		Status:      r.Status,
		Priority:    r.Priority,
		Stakeholder: r.From,
		VIP:         vips[strings.ToLower(r.From)],
		Deadline:    r.RespondBy,
		Raw:         rawOf(r),
	}
	if r.RequiresAction && item.Priority == "" {
		item.Priority = "high"
	}
	return item
}

func normalizeTask(r domain.TaskRecord) domain.CandidateItem {
	return domain.CandidateItem{
		ID:          r.ID,
		Type:        domain.DomainTask,
		Title:       r.Title,
		Description: r.Notes,
		Status:      r.Status,
		Priority:    r.Priority,
		Stakeholder: r.Stakeholder,
		VIP:         r.StakeholderTier == "vip",
		Deadline:    r.DueAt,
		Raw:         rawOf(r),
	}
}

func normalizeFinancial(r domain.FinancialRecord) domain.CandidateItem {
	amount := r.Amount
	return domain.CandidateItem{
		ID:          r.ID,
		Type:        domain.DomainFinancial,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		Stakeholder: r.Counterparty,
		Amount:      &amount,
		Deadline:    r.DueAt,
		Raw:         rawOf(r),
	}
}

func normalizeLegal(r domain.LegalRecord) domain.CandidateItem {
	return domain.CandidateItem{
		ID:          r.ID,
		Type:        domain.DomainLegal,
		Title:       r.Title,
		Description: r.Summary,
		Status:      r.Status,
		Risk:        r.OverallRisk,
		Stakeholder: r.Counterparty,
		Deadline:    r.ReviewDueAt,
		Raw:         rawOf(r),
	}
}

func normalizeCommercial(r domain.CommercialRecord) domain.CandidateItem {
	item := domain.CandidateItem{
		ID:          r.ID,
		Type:        domain.DomainCommercial,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		Stakeholder: r.Account,
		Deadline:    r.CloseAt,
		Raw:         rawOf(r),
	}
	if r.Value > 0 {
		v := r.Value
		item.Amount = &v
	}
	return item
}
