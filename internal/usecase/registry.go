package usecase

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"briefly/internal/domain"
)

// agentKey identifies one (user, type) agent registration.
type agentKey struct {
	userID string
	typ    domain.AgentType
}

func (k agentKey) String() string {
	return k.userID + "/" + string(k.typ)
}

// Registry holds every registered agent instance keyed by (user, type) and
// owns all state transitions. Transitions are compare-and-set under one
// lock, so two concurrent starts of the same key produce exactly one
// running instance.
type Registry struct {
	mu     sync.RWMutex
	agents map[agentKey]*domain.AgentInstance
	logger *slog.Logger
	now    func() time.Time // for testing
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		agents: make(map[agentKey]*domain.AgentInstance),
		logger: logger,
		now:    time.Now,
	}
}

// Register creates a stopped instance for the key. Returns ErrDuplicate if
// the key is already registered.
func (r *Registry) Register(userID string, typ domain.AgentType, settings domain.AgentSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := agentKey{userID, typ}
	if _, exists := r.agents[key]; exists {
		return fmt.Errorf("%w: agent %s", domain.ErrDuplicate, key)
	}
	r.agents[key] = &domain.AgentInstance{
		UserID:   userID,
		Type:     typ,
		State:    domain.StateStopped,
		Settings: settings,
	}
	r.logger.Info("agent registered", "user_id", userID, "agent_type", typ)
	return nil
}

// Transition moves the instance from one state to another atomically.
// Returns ErrNotFound for an unknown key and ErrInvalidInput when the
// instance is not in the expected from state (the CAS failed).
func (r *Registry) Transition(userID string, typ domain.AgentType, from, to domain.AgentState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := agentKey{userID, typ}
	inst, ok := r.agents[key]
	if !ok {
		return fmt.Errorf("%w: agent %s", domain.ErrNotFound, key)
	}
	if inst.State != from {
		return fmt.Errorf("%w: agent %s is %s, not %s", domain.ErrInvalidInput, key, inst.State, from)
	}
	inst.State = to
	if to == domain.StateRunning {
		inst.StartedAt = r.now()
	}
	return nil
}

// MarkRan stamps the instance's last-run time. Unknown keys are ignored:
// a run may legitimately outlive its registration during teardown.
func (r *Registry) MarkRan(userID string, typ domain.AgentType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.agents[agentKey{userID, typ}]; ok {
		t := r.now()
		inst.LastRunAt = &t
	}
}

// Get returns a snapshot of the instance, or ErrNotFound.
func (r *Registry) Get(userID string, typ domain.AgentType) (domain.AgentInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.agents[agentKey{userID, typ}]
	if !ok {
		return domain.AgentInfo{}, fmt.Errorf("%w: agent %s/%s", domain.ErrNotFound, userID, typ)
	}
	return inst.Info(), nil
}

// ListUser returns snapshots of every instance registered for the user,
// sorted by agent type.
func (r *Registry) ListUser(userID string) []domain.AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []domain.AgentInfo
	for key, inst := range r.agents {
		if key.userID == userID {
			infos = append(infos, inst.Info())
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Type < infos[j].Type
	})
	return infos
}

// Users returns the distinct user IDs with at least one registration.
func (r *Registry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var users []string
	for key := range r.agents {
		if !seen[key.userID] {
			seen[key.userID] = true
			users = append(users, key.userID)
		}
	}
	sort.Strings(users)
	return users
}

// Remove unregisters the instance. Returns ErrNotFound if not present.
func (r *Registry) Remove(userID string, typ domain.AgentType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := agentKey{userID, typ}
	if _, ok := r.agents[key]; !ok {
		return fmt.Errorf("%w: agent %s", domain.ErrNotFound, key)
	}
	delete(r.agents, key)
	r.logger.Info("agent removed", "user_id", userID, "agent_type", typ)
	return nil
}

// RemoveUser unregisters every instance for the user and returns the
// removed snapshots.
func (r *Registry) RemoveUser(userID string) []domain.AgentInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []domain.AgentInfo
	for key, inst := range r.agents {
		if key.userID == userID {
			removed = append(removed, inst.Info())
			delete(r.agents, key)
		}
	}
	sort.Slice(removed, func(i, j int) bool {
		return removed[i].Type < removed[j].Type
	})
	return removed
}
