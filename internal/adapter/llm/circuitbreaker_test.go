package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"briefly/internal/domain"
	"briefly/internal/infra/config"
)

// stubProvider returns canned responses or errors and counts calls.
type stubProvider struct {
	mu    sync.Mutex
	resp  *domain.ChatResponse
	err   error
	calls int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Chat(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestCircuitBreakerPassesThrough(t *testing.T) {
	inner := &stubProvider{resp: &domain.ChatResponse{ID: "r1"}}
	cb := NewCircuitBreakerProvider(inner, config.BreakerConfig{}, newTestLogger())

	resp, err := cb.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.ID != "r1" {
		t.Errorf("ID = %q, want r1", resp.ID)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("State = %v, want closed", cb.State())
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &stubProvider{err: domain.ErrUpstream}
	cb := NewCircuitBreakerProvider(inner, config.BreakerConfig{MaxFailures: 3}, newTestLogger())

	for i := 0; i < 3; i++ {
		if _, err := cb.Chat(context.Background(), domain.ChatRequest{}); err == nil {
			t.Fatal("expected failure")
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("State = %v, want open after 3 failures", cb.State())
	}

	before := inner.callCount()
	_, err := cb.Chat(context.Background(), domain.ChatRequest{})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Errorf("open circuit err = %v, want ErrUpstream", err)
	}
	if inner.callCount() != before {
		t.Error("open circuit still reached the inner provider")
	}
}

func TestCircuitBreakerRecoversAfterTimeout(t *testing.T) {
	inner := &stubProvider{err: domain.ErrUpstream}
	cb := NewCircuitBreakerProvider(inner, config.BreakerConfig{
		MaxFailures: 2,
		Timeout:     20 * time.Millisecond,
	}, newTestLogger())

	for i := 0; i < 2; i++ {
		cb.Chat(context.Background(), domain.ChatRequest{})
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("State = %v, want open", cb.State())
	}

	inner.mu.Lock()
	inner.err = nil
	inner.resp = &domain.ChatResponse{ID: "recovered"}
	inner.mu.Unlock()

	time.Sleep(30 * time.Millisecond)

	resp, err := cb.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("half-open probe: %v", err)
	}
	if resp.ID != "recovered" {
		t.Errorf("ID = %q, want recovered", resp.ID)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("State = %v, want closed after successful probe", cb.State())
	}
}
