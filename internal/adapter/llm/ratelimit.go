package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"briefly/internal/domain"
)

// RateLimiter implements a sliding-window rate limiter.
// It tracks timestamps of allowed calls and rejects new calls
// when the count within the window exceeds the limit.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  []time.Time
	now    func() time.Time // for testing
}

// NewRateLimiter creates a rate limiter that allows limit calls per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow returns true if a call is allowed under the rate limit, and records it.
// Returns false if the limit has been reached within the current window.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)

	// Trim expired entries.
	n := 0
	for _, t := range r.calls {
		if t.After(cutoff) {
			r.calls[n] = t
			n++
		}
	}
	r.calls = r.calls[:n]

	if len(r.calls) >= r.limit {
		return false
	}

	r.calls = append(r.calls, now)
	return true
}

// Reset clears all recorded calls. Useful for testing.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = r.calls[:0]
}

// RateLimitedProvider wraps an LLMProvider with a client-side call budget.
// Calls over the budget fail immediately with ErrRateLimit rather than
// burning the upstream quota.
type RateLimitedProvider struct {
	inner   domain.LLMProvider
	limiter *RateLimiter
}

// NewRateLimitedProvider wraps inner with a per-minute call budget.
func NewRateLimitedProvider(inner domain.LLMProvider, callsPerMinute int) *RateLimitedProvider {
	return &RateLimitedProvider{
		inner:   inner,
		limiter: NewRateLimiter(callsPerMinute, time.Minute),
	}
}

// Chat implements domain.LLMProvider.
func (p *RateLimitedProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if !p.limiter.Allow() {
		return nil, fmt.Errorf("%w: provider %q call budget exhausted", domain.ErrRateLimit, p.inner.Name())
	}
	return p.inner.Chat(ctx, req)
}

// Name implements domain.LLMProvider.
func (p *RateLimitedProvider) Name() string { return p.inner.Name() }

var _ domain.LLMProvider = (*RateLimitedProvider)(nil)
