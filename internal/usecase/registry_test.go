package usecase

import (
	"errors"
	"testing"

	"briefly/internal/domain"
)

func TestRegistryTransitionCAS(t *testing.T) {
	r := NewRegistry(testLogger())
	if err := r.Register("u1", domain.AgentEmail, domain.AgentSettings{Enabled: true}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := r.Transition("u1", domain.AgentEmail, domain.StateStopped, domain.StateRunning); err != nil {
		t.Fatalf("stopped->running: %v", err)
	}

	// Second CAS from Stopped must fail: the instance is Running.
	err := r.Transition("u1", domain.AgentEmail, domain.StateStopped, domain.StateRunning)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for lost CAS, got %v", err)
	}

	info, err := r.Get("u1", domain.AgentEmail)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if info.State != domain.StateRunning {
		t.Fatalf("state = %s, want running", info.State)
	}
	if info.StartedAt.IsZero() {
		t.Fatal("StartedAt not stamped on running transition")
	}
}

func TestRegistryDuplicateRegister(t *testing.T) {
	r := NewRegistry(testLogger())
	if err := r.Register("u1", domain.AgentEmail, domain.AgentSettings{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("u1", domain.AgentEmail, domain.AgentSettings{}); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Same type for a different user is a distinct key.
	if err := r.Register("u2", domain.AgentEmail, domain.AgentSettings{}); err != nil {
		t.Fatalf("register u2: %v", err)
	}
}

func TestRegistrySnapshotsAreCopies(t *testing.T) {
	r := NewRegistry(testLogger())
	if err := r.Register("u1", domain.AgentEmail, domain.AgentSettings{Enabled: true}); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.MarkRan("u1", domain.AgentEmail)

	info, err := r.Get("u1", domain.AgentEmail)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if info.LastRunAt == nil {
		t.Fatal("LastRunAt not recorded")
	}

	// Mutating the snapshot must not reach the registry.
	*info.LastRunAt = info.LastRunAt.AddDate(-1, 0, 0)
	again, _ := r.Get("u1", domain.AgentEmail)
	if again.LastRunAt.Equal(*info.LastRunAt) {
		t.Fatal("snapshot mutation leaked into registry state")
	}
}

func TestRegistryUsers(t *testing.T) {
	r := NewRegistry(testLogger())
	_ = r.Register("beta", domain.AgentEmail, domain.AgentSettings{})
	_ = r.Register("alpha", domain.AgentLegal, domain.AgentSettings{})
	_ = r.Register("alpha", domain.AgentEmail, domain.AgentSettings{})

	users := r.Users()
	if len(users) != 2 || users[0] != "alpha" || users[1] != "beta" {
		t.Fatalf("Users() = %v, want [alpha beta]", users)
	}
}
