package domain

import (
	"context"
	"time"
)

// AgentType identifies one of the per-user background agent kinds.
type AgentType string

const (
	AgentEmail      AgentType = "email"
	AgentLegal      AgentType = "legal"
	AgentFinancial  AgentType = "financial"
	AgentStablecoin AgentType = "stablecoin"
	AgentFocus      AgentType = "focus"
)

// AgentTypes lists every known agent type in a stable order.
var AgentTypes = []AgentType{AgentEmail, AgentLegal, AgentFinancial, AgentStablecoin, AgentFocus}

// ValidAgentType reports whether t is a known agent type.
func ValidAgentType(t AgentType) bool {
	for _, known := range AgentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// AgentState is the lifecycle state of a registered agent instance.
type AgentState string

const (
	StateStopped AgentState = "stopped"
	StateRunning AgentState = "running"
)

// AgentInstance is one live (user, type) agent registration. Instances are
// owned by the registry; external callers only ever see AgentInfo snapshots.
type AgentInstance struct {
	UserID    string
	Type      AgentType
	State     AgentState
	Settings  AgentSettings
	StartedAt time.Time
	LastRunAt *time.Time
}

// Info returns a read-only snapshot of the instance.
func (a *AgentInstance) Info() AgentInfo {
	info := AgentInfo{
		UserID:    a.UserID,
		Type:      a.Type,
		State:     a.State,
		Settings:  a.Settings,
		StartedAt: a.StartedAt,
	}
	if a.LastRunAt != nil {
		t := *a.LastRunAt
		info.LastRunAt = &t
	}
	return info
}

// AgentInfo is a read-only snapshot of a registered agent instance.
type AgentInfo struct {
	UserID    string        `json:"user_id"`
	Type      AgentType     `json:"type"`
	State     AgentState    `json:"state"`
	Settings  AgentSettings `json:"settings"`
	StartedAt time.Time     `json:"started_at"`
	LastRunAt *time.Time    `json:"last_run_at,omitempty"`
}

// AgentRunner executes one agent type's work for a single user.
// Implementations must be safe for concurrent use across users.
type AgentRunner interface {
	Type() AgentType
	Run(ctx context.Context, userID string, input map[string]any) error
}
