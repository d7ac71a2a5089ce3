package briefing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"briefly/internal/domain"
	"briefly/internal/infra/tracer"
)

type cacheKey struct {
	userID string
	scope  domain.Scope
}

// Cache serves the most recent briefing per (user, scope) and owns the
// regeneration pipeline. Reads inside the validity window are side-effect
// free; a miss, an expired entry, or an explicit refresh regenerates.
//
// The read-then-regenerate sequence is deliberately not atomic against a
// concurrent refresh for the same key: both may regenerate and the later
// write wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*domain.FocusBriefing

	store    domain.BriefingStore
	agg      *Aggregator
	engine   *Engine
	fallback *Fallback
	logger   *slog.Logger
	now      func() time.Time // for testing
}

// NewCache creates a Cache backed by the durable briefing store.
func NewCache(store domain.BriefingStore, agg *Aggregator, engine *Engine, fallback *Fallback, logger *slog.Logger) *Cache {
	return &Cache{
		entries:  make(map[cacheKey]*domain.FocusBriefing),
		store:    store,
		agg:      agg,
		engine:   engine,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the most recent non-expired briefing, regenerating on a
// miss or an expired entry.
func (c *Cache) Get(ctx context.Context, userID string, scope domain.Scope) (*domain.FocusBriefing, error) {
	const op = "cache.Get"
	if !domain.ValidScope(scope) {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("unknown scope %q", scope))
	}

	ctx, span := tracer.StartSpan(ctx, op, trace.WithAttributes(
		tracer.StringAttr("user_id", userID),
		tracer.StringAttr("scope", string(scope)),
	))
	defer span.End()

	now := c.now()
	key := cacheKey{userID, scope}

	c.mu.RLock()
	entry := c.entries[key]
	c.mu.RUnlock()

	if entry != nil && !entry.Expired(now) {
		tracer.SetOK(span)
		return entry, nil
	}

	// Cold start: the durable store may hold a valid briefing from a
	// previous process.
	if entry == nil {
		stored, err := c.store.GetBriefing(ctx, userID, scope)
		if err == nil && !stored.Expired(now) {
			c.put(key, stored)
			tracer.SetOK(span)
			return stored, nil
		}
	}

	b, err := c.regenerate(ctx, userID, scope)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)
	return b, nil
}

// Refresh always regenerates, bypassing any existing valid entry.
func (c *Cache) Refresh(ctx context.Context, userID string, scope domain.Scope) (*domain.FocusBriefing, error) {
	const op = "cache.Refresh"
	if !domain.ValidScope(scope) {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("unknown scope %q", scope))
	}

	ctx, span := tracer.StartSpan(ctx, op, trace.WithAttributes(
		tracer.StringAttr("user_id", userID),
		tracer.StringAttr("scope", string(scope)),
	))
	defer span.End()

	b, err := c.regenerate(ctx, userID, scope)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)
	return b, nil
}

// regenerate runs aggregation, prioritization with fallback, then the
// cache write. A failed persistence write is logged and the fresh result
// is still returned; a failed aggregation aborts for this key only.
func (c *Cache) regenerate(ctx context.Context, userID string, scope domain.Scope) (*domain.FocusBriefing, error) {
	data, err := c.agg.Collect(ctx, userID, scope)
	if err != nil {
		return nil, err
	}

	b, err := c.engine.Analyze(ctx, data)
	if err != nil {
		if !domain.FallbackTrigger(err) {
			return nil, err
		}
		c.logger.Warn("generative prioritization failed, using deterministic fallback",
			"user_id", userID, "scope", scope, "error", err)
		b = c.fallback.Build(data)
	}

	c.put(cacheKey{userID, scope}, b)

	if err := c.store.PutBriefing(ctx, b); err != nil {
		c.logger.Error("briefing persistence failed, serving uncached result",
			"user_id", userID, "scope", scope, "error", err)
	}

	return b, nil
}

func (c *Cache) put(key cacheKey, b *domain.FocusBriefing) {
	c.mu.Lock()
	c.entries[key] = b
	c.mu.Unlock()
}
