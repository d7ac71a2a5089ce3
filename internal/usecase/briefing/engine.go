package briefing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/kaptinlin/jsonschema"
	"github.com/oklog/ulid/v2"

	"briefly/internal/domain"
)

// replySchema validates the backend's reply shape before any field is
// trusted. Items with ids or types outside the input set are caught later
// during reconciliation.
const replySchema = `{
	"type": "object",
	"required": ["briefing_text", "key_highlights", "items"],
	"properties": {
		"briefing_text": {"type": "string"},
		"key_highlights": {"type": "array", "items": {"type": "string"}},
		"items": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "type", "urgency_score"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"type": {"enum": ["email", "task", "financial", "legal", "commercial"]},
					"urgency_score": {"type": "integer"},
					"urgency_reason": {"type": "string"}
				}
			}
		}
	}
}`

// engineReply is the decoded backend reply after schema validation.
type engineReply struct {
	BriefingText  string            `json:"briefing_text"`
	KeyHighlights []string          `json:"key_highlights"`
	Items         []engineReplyItem `json:"items"`
}

type engineReplyItem struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	UrgencyScore  int    `json:"urgency_score"`
	UrgencyReason string `json:"urgency_reason"`
}

// Engine asks the generative backend to prioritize collected data and
// reconciles the reply into a FocusBriefing. Any upstream failure, parse
// failure, or schema mismatch is surfaced as an error; the caller routes
// those to the deterministic fallback.
type Engine struct {
	provider    domain.LLMProvider
	prompts     *PromptBuilder
	schema      *jsonschema.Schema
	timeout     time.Duration
	maxTokens   int
	temperature float64
	logger      *slog.Logger
	now         func() time.Time // for testing
}

// NewEngine creates an Engine. A zero timeout disables the per-call bound.
func NewEngine(provider domain.LLMProvider, prompts *PromptBuilder, timeout time.Duration, maxTokens int, logger *slog.Logger) (*Engine, error) {
	schema, err := jsonschema.NewCompiler().Compile([]byte(replySchema))
	if err != nil {
		return nil, fmt.Errorf("compile reply schema: %w", err)
	}
	return &Engine{
		provider:    provider,
		prompts:     prompts,
		schema:      schema,
		timeout:     timeout,
		maxTokens:   maxTokens,
		temperature: 0.2,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Analyze prioritizes the collected data through the generative backend.
func (e *Engine) Analyze(ctx context.Context, data *domain.CollectedData) (*domain.FocusBriefing, error) {
	const op = "engine.Analyze"

	if data.TotalItems() == 0 {
		return EmptyBriefing(data.UserID, data.Scope, e.now()), nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: e.prompts.SystemPrompt()},
			{Role: domain.RoleUser, Content: e.prompts.Build(data)},
		},
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewDomainError(op, domain.ErrTimeout, "backend call exceeded deadline")
		}
		return nil, domain.WrapOp(op, err)
	}

	reply, err := e.parseReply(resp.Message.Content)
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrMalformedResponse, err.Error())
	}

	return e.reconcile(data, reply), nil
}

// parseReply strips fence wrapping, validates against the reply schema,
// and decodes. Validation runs on the loosely-parsed document so a single
// bad field fails the whole reply rather than silently zeroing.
func (e *Engine) parseReply(content string) (*engineReply, error) {
	cleaned := stripCodeFences(content)

	var loose any
	if err := json.Unmarshal([]byte(cleaned), &loose); err != nil {
		return nil, fmt.Errorf("parse reply JSON: %w", err)
	}

	if result := e.schema.Validate(loose); !result.IsValid() {
		return nil, fmt.Errorf("reply failed schema validation: %s", result.Error())
	}

	var reply engineReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &reply, nil
}

// reconcile rebuilds each reply item from its original record. The model
// is trusted for scores and reasons only; every domain field (amount,
// deadline, stakeholder, VIP flag, risk) comes from the collected data.
// Reply items that do not resolve to an input record are dropped.
func (e *Engine) reconcile(data *domain.CollectedData, reply *engineReply) *domain.FocusBriefing {
	items := make([]domain.FocusItem, 0, len(reply.Items))
	seen := make(map[string]bool, len(reply.Items))

	for _, ri := range reply.Items {
		typ := domain.DomainType(ri.Type)
		src := data.Lookup(ri.ID, typ)
		if src == nil {
			e.logger.Warn("backend returned unknown item, dropping",
				"user_id", data.UserID, "item_id", ri.ID, "item_type", ri.Type)
			continue
		}
		key := ri.ID + "/" + ri.Type
		if seen[key] {
			continue
		}
		seen[key] = true

		score := domain.ClampScore(ri.UrgencyScore)
		items = append(items, buildFocusItem(src, score, ri.UrgencyReason))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UrgencyScore > items[j].UrgencyScore
	})

	now := e.now()
	return &domain.FocusBriefing{
		ID:          newBriefingID(now),
		UserID:      data.UserID,
		Scope:       data.Scope,
		Summary:     reply.BriefingText,
		Highlights:  reply.KeyHighlights,
		Items:       items,
		TotalItems:  len(items),
		UrgentCount: domain.CountUrgent(items),
		GeneratedAt: now,
		ExpiresAt:   domain.ExpiryFor(data.Scope, now),
	}
}

// buildFocusItem projects a candidate plus a score into the output shape.
// Shared by the generative and fallback paths so both produce identical
// structure for the same input.
func buildFocusItem(src *domain.CandidateItem, score int, reason string) domain.FocusItem {
	srcCopy := *src
	item := domain.FocusItem{
		ID:            src.ID,
		Type:          src.Type,
		Title:         src.Title,
		Description:   src.Description,
		UrgencyScore:  score,
		UrgencyLevel:  domain.LevelForScore(score),
		UrgencyReason: reason,
		Deadline:      src.Deadline,
		Stakeholder:   src.Stakeholder,
		IsVip:         src.VIP,
		RiskLevel:     src.Risk,
		Source:        &srcCopy,
	}
	if src.Amount != nil {
		a := *src.Amount
		item.Amount = &a
	}
	return item
}

// EmptyBriefing is the canned "nothing pending" result both generation
// paths short-circuit to when no domain has eligible items.
func EmptyBriefing(userID string, scope domain.Scope, now time.Time) *domain.FocusBriefing {
	return &domain.FocusBriefing{
		ID:          newBriefingID(now),
		UserID:      userID,
		Scope:       scope,
		Summary:     "Nothing pending. All caught up.",
		Highlights:  []string{},
		Items:       []domain.FocusItem{},
		TotalItems:  0,
		UrgentCount: 0,
		GeneratedAt: now,
		ExpiresAt:   domain.ExpiryFor(scope, now),
	}
}

func newBriefingID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
