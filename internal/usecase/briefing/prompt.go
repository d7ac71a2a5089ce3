package briefing

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"briefly/internal/domain"
)

// systemPrompt is the fixed instruction sent with every prioritization
// request. The reply contract is strict JSON with no surrounding prose.
const systemPrompt = `You are an executive assistant that prioritizes pending work.
You receive a numbered list of candidate items across five domains: email, task, financial, legal, commercial.
Score each item 0-100 for urgency, considering deadline proximity, monetary amounts, risk level, and stakeholder importance.
Respond with ONLY a JSON object, no prose and no Markdown fences, of this exact shape:
{"briefing_text": "...", "key_highlights": ["..."], "items": [{"id": "...", "type": "email|task|financial|legal|commercial", "urgency_score": 0, "urgency_reason": "..."}]}
Every item in your reply must use an id and type copied verbatim from the input list.`

// TokenCounter estimates prompt sizes. It prefers the model's real BPE
// vocabulary and degrades to a bytes/4 heuristic for unknown models.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter builds a counter for the given model name.
func NewTokenCounter(model string) *TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc = nil
	}
	return &TokenCounter{enc: enc}
}

// CountText estimates the token count of s.
func (c *TokenCounter) CountText(s string) int {
	if c.enc != nil {
		return len(c.enc.Encode(s, nil, nil))
	}
	return len(s) / 4
}

// PromptBuilder turns collected data into the user prompt, keeping every
// field bounded and the whole prompt inside a token budget.
type PromptBuilder struct {
	maxFieldChars int
	tokenBudget   int
	counter       *TokenCounter
}

// NewPromptBuilder creates a PromptBuilder. A zero tokenBudget disables
// budget enforcement.
func NewPromptBuilder(maxFieldChars, tokenBudget int, counter *TokenCounter) *PromptBuilder {
	if maxFieldChars <= 0 {
		maxFieldChars = 200
	}
	return &PromptBuilder{
		maxFieldChars: maxFieldChars,
		tokenBudget:   tokenBudget,
		counter:       counter,
	}
}

// SystemPrompt returns the fixed system instruction.
func (b *PromptBuilder) SystemPrompt() string { return systemPrompt }

// Build renders the user prompt for one aggregation pass. When the full
// rendering exceeds the token budget, descriptions are dropped first, then
// trailing candidates, so the highest-listed items always survive.
func (b *PromptBuilder) Build(data *domain.CollectedData) string {
	full := b.render(data, true, data.TotalItems())
	if b.tokenBudget <= 0 || b.counter == nil || b.counter.CountText(full) <= b.tokenBudget {
		return full
	}

	slim := b.render(data, false, data.TotalItems())
	if b.counter.CountText(slim) <= b.tokenBudget {
		return slim
	}

	// Still over budget: binary-search the largest item count that fits.
	lo, hi := 1, data.TotalItems()
	best := b.render(data, false, 1)
	for lo <= hi {
		mid := (lo + hi) / 2
		candidate := b.render(data, false, mid)
		if b.counter.CountText(candidate) <= b.tokenBudget {
			best = candidate
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}

func (b *PromptBuilder) render(data *domain.CollectedData, withDescriptions bool, maxItems int) string {
	var sb strings.Builder

	horizon := "today"
	if data.Scope == domain.ScopeWeek {
		horizon = "the next 7 days"
	}
	fmt.Fprintf(&sb, "Pending work for %s. Prioritize the following items:\n", horizon)

	n := 0
	writeSection := func(label string, items []domain.CandidateItem) {
		if len(items) == 0 || n >= maxItems {
			return
		}
		fmt.Fprintf(&sb, "\n## %s\n", label)
		for _, item := range items {
			if n >= maxItems {
				return
			}
			n++
			b.writeItem(&sb, item, withDescriptions)
		}
	}

	writeSection("Emails", data.Emails)
	writeSection("Tasks", data.Tasks)
	writeSection("Financial", data.Financial)
	writeSection("Legal", data.Legal)
	writeSection("Commercial", data.Commercial)

	sb.WriteString("\nScoring guidance: imminent deadlines score higher; amounts above 10000 score higher; critical or high risk scores higher; VIP stakeholders score higher.\n")
	return sb.String()
}

func (b *PromptBuilder) writeItem(sb *strings.Builder, item domain.CandidateItem, withDescription bool) {
	fmt.Fprintf(sb, "- id=%s type=%s title=%q", item.ID, item.Type, truncate(item.Title, b.maxFieldChars))
	if item.Status != "" {
		fmt.Fprintf(sb, " status=%s", item.Status)
	}
	if item.Priority != "" {
		fmt.Fprintf(sb, " priority=%s", item.Priority)
	}
	if item.Risk != "" {
		fmt.Fprintf(sb, " risk=%s", item.Risk)
	}
	if item.Deadline != nil {
		fmt.Fprintf(sb, " deadline=%s", item.Deadline.Format(time.RFC3339))
	}
	if item.Amount != nil {
		fmt.Fprintf(sb, " amount=%.2f", *item.Amount)
	}
	if item.Stakeholder != "" {
		fmt.Fprintf(sb, " stakeholder=%q", truncate(item.Stakeholder, 80))
	}
	if item.VIP {
		sb.WriteString(" vip=true")
	}
	if withDescription && item.Description != "" {
		fmt.Fprintf(sb, " description=%q", truncate(item.Description, b.maxFieldChars))
	}
	sb.WriteString("\n")
}
