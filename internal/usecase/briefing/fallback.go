package briefing

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"briefly/internal/domain"
)

// Fallback is the rule-based scorer used when the generative backend is
// unavailable or returns unusable output. The scoring table is fixed and
// auditable; the output shape is identical to the engine's.
type Fallback struct {
	logger *slog.Logger
	now    func() time.Time // for testing
}

// NewFallback creates a Fallback scorer.
func NewFallback(logger *slog.Logger) *Fallback {
	return &Fallback{logger: logger, now: time.Now}
}

// Build produces a deterministic briefing from the collected data.
func (f *Fallback) Build(data *domain.CollectedData) *domain.FocusBriefing {
	now := f.now()
	if data.TotalItems() == 0 {
		return EmptyBriefing(data.UserID, data.Scope, now)
	}

	all := data.All()
	items := make([]domain.FocusItem, 0, len(all))
	for i := range all {
		score, reason := scoreCandidate(&all[i], now)
		items = append(items, buildFocusItem(&all[i], score, reason))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UrgencyScore > items[j].UrgencyScore
	})

	urgent := domain.CountUrgent(items)
	summary := fmt.Sprintf("%d pending items across your domains, %d urgent.", len(items), urgent)

	var highlights []string
	for _, item := range items {
		if item.UrgencyLevel == domain.LevelCritical && len(highlights) < 3 {
			highlights = append(highlights, item.Title)
		}
	}
	if highlights == nil {
		highlights = []string{}
	}

	f.logger.Info("deterministic fallback briefing built",
		"user_id", data.UserID, "scope", data.Scope, "items", len(items))

	return &domain.FocusBriefing{
		ID:          newBriefingID(now),
		UserID:      data.UserID,
		Scope:       data.Scope,
		Summary:     summary,
		Highlights:  highlights,
		Items:       items,
		TotalItems:  len(items),
		UrgentCount: urgent,
		GeneratedAt: now,
		ExpiresAt:   domain.ExpiryFor(data.Scope, now),
	}
}

// scoreCandidate applies the fixed scoring table. Rules fire in priority
// order per domain; the deadline bonus applies on top, capped at 100.
func scoreCandidate(item *domain.CandidateItem, now time.Time) (int, string) {
	score := 30
	reason := "pending item"

	switch item.Type {
	case domain.DomainFinancial:
		switch item.Priority {
		case "urgent":
			score, reason = 90, "urgent financial obligation"
		case "high":
			score, reason = 75, "high-priority financial obligation"
		default:
			score, reason = 55, "financial obligation"
		}
		if item.Amount != nil && *item.Amount >= 10000 {
			score, reason = bump(score, 10), reason+", large amount"
		}
	case domain.DomainLegal:
		switch item.Risk {
		case "critical":
			score, reason = 95, "critical legal risk"
		case "high":
			score, reason = 80, "high legal risk"
		case "medium":
			score, reason = 55, "legal review pending"
		default:
			score, reason = 45, "legal review pending"
		}
	case domain.DomainTask:
		switch item.Priority {
		case "urgent":
			score, reason = 85, "urgent task"
		case "high":
			score, reason = 70, "high-priority task"
		default:
			score, reason = 45, "open task"
		}
		if item.VIP && score < 75 {
			score, reason = 75, "task for VIP stakeholder"
		}
	case domain.DomainEmail:
		switch item.Priority {
		case "urgent":
			score, reason = 80, "urgent email"
		case "high":
			score, reason = 65, "email requires action"
		default:
			score, reason = 40, "pending email"
		}
		if item.VIP {
			score, reason = bump(score, 15), "email from VIP sender"
		}
	case domain.DomainCommercial:
		switch item.Status {
		case "at_risk":
			score, reason = 80, "deal at risk"
		case "negotiation":
			score, reason = 60, "deal in negotiation"
		default:
			score, reason = 50, "open deal"
		}
		if item.Amount != nil && *item.Amount >= 50000 {
			score, reason = bump(score, 10), reason+", high value"
		}
	}

	// Deadline proximity escalates everything below the critical band.
	if item.Deadline != nil && !item.Deadline.IsZero() && score < 90 {
		hours := item.Deadline.Sub(now).Hours()
		switch {
		case hours <= 24:
			score = bump(score, 10)
			reason += ", due within 24h"
		case hours <= 72:
			score = bump(score, 5)
			reason += ", due within 3 days"
		}
	}

	return domain.ClampScore(score), reason
}

func bump(score, by int) int {
	return domain.ClampScore(score + by)
}
