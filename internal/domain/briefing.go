package domain

import (
	"time"
)

// Scope is the time horizon a briefing covers.
type Scope string

const (
	ScopeToday Scope = "today"
	ScopeWeek  Scope = "week"
)

// ValidScope reports whether s is a known briefing scope.
func ValidScope(s Scope) bool {
	return s == ScopeToday || s == ScopeWeek
}

// UrgencyLevel buckets an urgency score into a display category.
type UrgencyLevel string

const (
	LevelCritical UrgencyLevel = "critical"
	LevelHigh     UrgencyLevel = "high"
	LevelMedium   UrgencyLevel = "medium"
	LevelLow      UrgencyLevel = "low"
)

// LevelForScore maps an urgency score to its level. Both the generative
// path and the deterministic fallback use this single mapping so an item
// can never carry a level inconsistent with its score.
func LevelForScore(score int) UrgencyLevel {
	switch {
	case score >= 90:
		return LevelCritical
	case score >= 70:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ClampScore bounds a score to the valid 0-100 range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// FocusItem is one prioritized piece of pending work surfaced to the user.
type FocusItem struct {
	ID            string         `json:"id"`
	Type          DomainType     `json:"type"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	UrgencyScore  int            `json:"urgency_score"`
	UrgencyLevel  UrgencyLevel   `json:"urgency_level"`
	UrgencyReason string         `json:"urgency_reason,omitempty"`
	Deadline      *time.Time     `json:"deadline,omitempty"`
	Amount        *float64       `json:"amount,omitempty"`
	Stakeholder   string         `json:"stakeholder,omitempty"`
	IsVip         bool           `json:"is_vip,omitempty"`
	RiskLevel     string         `json:"risk_level,omitempty"`
	Source        *CandidateItem `json:"source,omitempty"` // originating record, for UI re-hydration
}

// FocusBriefing is the aggregated, prioritized summary for one (user, scope).
// A briefing is immutable once generated; regeneration supersedes it.
type FocusBriefing struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Scope       Scope       `json:"scope"`
	Summary     string      `json:"summary"`
	Highlights  []string    `json:"highlights"`
	Items       []FocusItem `json:"items"`
	TotalItems  int         `json:"total_items"`
	UrgentCount int         `json:"urgent_count"`
	GeneratedAt time.Time   `json:"generated_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// Expired reports whether the briefing is stale at the given instant.
// A cache read at or past ExpiresAt must treat the entry as a miss.
func (b *FocusBriefing) Expired(now time.Time) bool {
	return !now.Before(b.ExpiresAt)
}

// CountUrgent returns the number of items at critical or high urgency.
func CountUrgent(items []FocusItem) int {
	n := 0
	for _, item := range items {
		if item.UrgencyLevel == LevelCritical || item.UrgencyLevel == LevelHigh {
			n++
		}
	}
	return n
}

// EndOfDay returns 23:59:59.999 on t's calendar date in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999*int(time.Millisecond), t.Location())
}

// ExpiryFor computes when a briefing generated at now goes stale:
// today-scoped briefings expire at end of the generation day; week-scoped
// briefings expire at end of the upcoming Sunday. A briefing generated on
// a Sunday expires that same night, the distance being measured from the
// generation instant rather than a fixed anchor.
func ExpiryFor(scope Scope, now time.Time) time.Time {
	if scope == ScopeWeek {
		daysUntilSunday := (7 - int(now.Weekday())) % 7
		return EndOfDay(now.AddDate(0, 0, daysUntilSunday))
	}
	return EndOfDay(now)
}

// WindowFor computes the aggregation window for a scope: from now until
// end of today (today scope) or now plus seven days (week scope).
func WindowFor(scope Scope, now time.Time) TimeWindow {
	if scope == ScopeWeek {
		return TimeWindow{From: now, To: now.AddDate(0, 0, 7)}
	}
	return TimeWindow{From: now, To: EndOfDay(now)}
}
