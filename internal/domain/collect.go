package domain

import (
	"encoding/json"
	"time"
)

// DomainType tags which store a candidate item came from.
type DomainType string

const (
	DomainEmail      DomainType = "email"
	DomainTask       DomainType = "task"
	DomainFinancial  DomainType = "financial"
	DomainLegal      DomainType = "legal"
	DomainCommercial DomainType = "commercial"
)

// DomainTypes lists every candidate domain in a stable order.
var DomainTypes = []DomainType{DomainEmail, DomainTask, DomainFinancial, DomainLegal, DomainCommercial}

// ValidDomainType reports whether d is a known domain tag.
func ValidDomainType(d DomainType) bool {
	for _, known := range DomainTypes {
		if d == known {
			return true
		}
	}
	return false
}

// TimeWindow bounds an aggregation query. From is inclusive, To exclusive.
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window. A zero t (no
// deadline) always matches: undated pending work is never filtered out.
func (w TimeWindow) Contains(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	return !t.Before(w.From) && t.Before(w.To)
}

// CandidateItem is the uniform projection of one pending domain record,
// carrying exactly the fields the prioritization and fallback stages need.
type CandidateItem struct {
	ID          string          `json:"id"`
	Type        DomainType      `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status,omitempty"`
	Priority    string          `json:"priority,omitempty"`
	Risk        string          `json:"risk,omitempty"`
	Stakeholder string          `json:"stakeholder,omitempty"`
	VIP         bool            `json:"vip,omitempty"`
	Amount      *float64        `json:"amount,omitempty"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"` // original record for re-hydration
}

// CollectedData holds one aggregation pass over the five domains.
// It is owned by the collecting call and discarded after prioritization,
// except for the back-references kept inside each FocusItem.
type CollectedData struct {
	UserID     string
	Scope      Scope
	Window     TimeWindow
	Emails     []CandidateItem
	Tasks      []CandidateItem
	Financial  []CandidateItem
	Legal      []CandidateItem
	Commercial []CandidateItem
}

// TotalItems is the eligible record count across all five domains.
func (d *CollectedData) TotalItems() int {
	return len(d.Emails) + len(d.Tasks) + len(d.Financial) + len(d.Legal) + len(d.Commercial)
}

// All returns every candidate in domain order.
func (d *CollectedData) All() []CandidateItem {
	all := make([]CandidateItem, 0, d.TotalItems())
	all = append(all, d.Emails...)
	all = append(all, d.Tasks...)
	all = append(all, d.Financial...)
	all = append(all, d.Legal...)
	all = append(all, d.Commercial...)
	return all
}

// Lookup finds the candidate with the given identity, or nil. The
// prioritization engine uses it to reattach fields the generative backend
// is not trusted to reproduce.
func (d *CollectedData) Lookup(id string, typ DomainType) *CandidateItem {
	var items []CandidateItem
	switch typ {
	case DomainEmail:
		items = d.Emails
	case DomainTask:
		items = d.Tasks
	case DomainFinancial:
		items = d.Financial
	case DomainLegal:
		items = d.Legal
	case DomainCommercial:
		items = d.Commercial
	default:
		return nil
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}
