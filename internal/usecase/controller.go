package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"briefly/internal/domain"
	"briefly/internal/infra/tracer"
)

// Controller manages per-user agent lifecycles. All state lives in the
// registry; the config store supplies per-user enablement and the durable
// active flag consulted after a restart.
//
// Failure isolation: any error while starting, stopping, or running one
// (user, type) pair is logged at that granularity and never propagates to
// sibling agents or other users.
type Controller struct {
	registry *Registry
	configs  domain.ConfigStore
	runners  map[domain.AgentType]domain.AgentRunner
	logger   *slog.Logger
}

// NewController creates a Controller with the given runners. Agent types
// without a registered runner can be started but fail run-once with a
// configuration error.
func NewController(registry *Registry, configs domain.ConfigStore, runners []domain.AgentRunner, logger *slog.Logger) *Controller {
	byType := make(map[domain.AgentType]domain.AgentRunner, len(runners))
	for _, r := range runners {
		byType[r.Type()] = r
	}
	return &Controller{
		registry: registry,
		configs:  configs,
		runners:  byType,
		logger:   logger,
	}
}

// loadUsable loads the user's config and rejects suspended accounts.
func (c *Controller) loadUsable(ctx context.Context, op, userID string) (*domain.UserConfig, error) {
	cfg, err := c.configs.Load(ctx, userID)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if cfg.Suspended {
		return nil, domain.NewDomainError(op, domain.ErrConfiguration, fmt.Sprintf("user %s is suspended", userID))
	}
	return cfg, nil
}

// InitializeForUser starts every agent type the user has enabled.
// Idempotent per type: already-running agents are left alone. Individual
// start failures are logged and skipped.
func (c *Controller) InitializeForUser(ctx context.Context, userID string) error {
	const op = "controller.InitializeForUser"
	ctx, span := tracer.StartSpan(ctx, op, trace.WithAttributes(tracer.StringAttr("user_id", userID)))
	defer span.End()

	cfg, err := c.loadUsable(ctx, op, userID)
	if err != nil {
		tracer.RecordError(span, err)
		return err
	}

	for _, typ := range domain.AgentTypes {
		if !cfg.AgentEnabled(typ) {
			continue
		}
		if err := c.startWithConfig(userID, typ, cfg); err != nil {
			c.logger.Error("agent start failed during initialize",
				"user_id", userID, "agent_type", typ, "error", err)
		}
	}
	tracer.SetOK(span)
	return nil
}

// StartAgent transitions the (user, type) agent to Running, creating the
// instance if needed. Starting an already-Running agent is a no-op.
// Suspended accounts and disabled agent types yield ErrConfiguration and
// no instance is created.
func (c *Controller) StartAgent(ctx context.Context, userID string, typ domain.AgentType) error {
	const op = "controller.StartAgent"
	if !domain.ValidAgentType(typ) {
		return domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("unknown agent type %q", typ))
	}

	cfg, err := c.loadUsable(ctx, op, userID)
	if err != nil {
		return err
	}
	if !cfg.AgentEnabled(typ) {
		return domain.NewDomainError(op, domain.ErrConfiguration,
			fmt.Sprintf("agent %s not enabled for user %s", typ, userID))
	}

	if err := c.startWithConfig(userID, typ, cfg); err != nil {
		return domain.WrapOp(op, err)
	}
	return nil
}

// startWithConfig registers (if needed) and transitions to Running. A lost
// register or transition race means someone else started the agent, which
// satisfies the caller's intent.
func (c *Controller) startWithConfig(userID string, typ domain.AgentType, cfg *domain.UserConfig) error {
	settings := cfg.Agents[typ]

	if err := c.registry.Register(userID, typ, settings); err != nil && !errors.Is(err, domain.ErrDuplicate) {
		return err
	}
	err := c.registry.Transition(userID, typ, domain.StateStopped, domain.StateRunning)
	if err != nil && !errors.Is(err, domain.ErrInvalidInput) {
		return err
	}
	if err == nil {
		c.logger.Info("agent started", "user_id", userID, "agent_type", typ)
	}
	return nil
}

// StopAgent stops and removes the (user, type) instance. Stopping an
// agent that was never started is a no-op.
func (c *Controller) StopAgent(ctx context.Context, userID string, typ domain.AgentType) error {
	const op = "controller.StopAgent"
	if !domain.ValidAgentType(typ) {
		return domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("unknown agent type %q", typ))
	}

	if err := c.registry.Remove(userID, typ); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return domain.WrapOp(op, err)
	}
	c.logger.Info("agent stopped", "user_id", userID, "agent_type", typ)
	return nil
}

// StopForUser stops and removes every instance for the user. Used on
// account suspension.
func (c *Controller) StopForUser(ctx context.Context, userID string) {
	removed := c.registry.RemoveUser(userID)
	if len(removed) > 0 {
		c.logger.Info("all agents stopped for user", "user_id", userID, "count", len(removed))
	}
}

// RunAgentOnce executes the agent's logic a single time without changing
// its registered Running/Stopped state. A manual trigger, not tracked as a
// live instance.
func (c *Controller) RunAgentOnce(ctx context.Context, userID string, typ domain.AgentType, input map[string]any) error {
	const op = "controller.RunAgentOnce"
	if !domain.ValidAgentType(typ) {
		return domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("unknown agent type %q", typ))
	}

	if _, err := c.loadUsable(ctx, op, userID); err != nil {
		return err
	}

	runner, ok := c.runners[typ]
	if !ok {
		return domain.NewDomainError(op, domain.ErrConfiguration,
			fmt.Sprintf("no runner registered for agent type %s", typ))
	}

	if err := runner.Run(ctx, userID, input); err != nil {
		c.logger.Error("agent run failed", "user_id", userID, "agent_type", typ, "error", err)
		return domain.WrapOp(op, err)
	}
	c.registry.MarkRan(userID, typ)
	return nil
}

// GetUserAgents returns snapshots of every registered agent for the user.
func (c *Controller) GetUserAgents(userID string) []domain.AgentInfo {
	return c.registry.ListUser(userID)
}

// GetAgentInfo returns a snapshot of one (user, type) instance.
func (c *Controller) GetAgentInfo(userID string, typ domain.AgentType) (domain.AgentInfo, error) {
	return c.registry.Get(userID, typ)
}

// UpdateAgentConfig applies a configuration change with a stop-then-recreate
// cycle. With a zero-value type, every registered agent for the user is
// cycled. Instances whose type the new config no longer enables stay stopped.
func (c *Controller) UpdateAgentConfig(ctx context.Context, userID string, typ domain.AgentType) error {
	const op = "controller.UpdateAgentConfig"

	cfg, err := c.loadUsable(ctx, op, userID)
	if err != nil {
		return err
	}

	types := []domain.AgentType{typ}
	if typ == "" {
		types = nil
		for _, info := range c.registry.ListUser(userID) {
			types = append(types, info.Type)
		}
	}

	for _, t := range types {
		if err := c.registry.Remove(userID, t); err != nil && !errors.Is(err, domain.ErrNotFound) {
			c.logger.Error("agent stop failed during config update",
				"user_id", userID, "agent_type", t, "error", err)
			continue
		}
		if !cfg.AgentEnabled(t) {
			continue
		}
		if err := c.startWithConfig(userID, t, cfg); err != nil {
			c.logger.Error("agent restart failed during config update",
				"user_id", userID, "agent_type", t, "error", err)
		}
	}
	return nil
}

// SetAgentsActiveState persists the durable active flag consulted by
// AutoStartAgents after a restart.
func (c *Controller) SetAgentsActiveState(ctx context.Context, userID string, active bool) error {
	const op = "controller.SetAgentsActiveState"
	if err := c.configs.SetAgentsActive(ctx, userID, active); err != nil {
		return domain.WrapOp(op, err)
	}
	return nil
}

// GetActiveUsers enumerates users with at least one live instance.
func (c *Controller) GetActiveUsers() []string {
	return c.registry.Users()
}

// HasRunning reports whether the (user, type) agent is currently Running.
func (c *Controller) HasRunning(userID string, typ domain.AgentType) bool {
	info, err := c.registry.Get(userID, typ)
	return err == nil && info.State == domain.StateRunning
}

// StopAll stops every instance for every user. Graceful shutdown path.
func (c *Controller) StopAll(ctx context.Context) {
	for _, userID := range c.registry.Users() {
		c.StopForUser(ctx, userID)
	}
	c.logger.Info("all agents stopped")
}

// AutoStartAgents re-derives live instances from the persisted active
// flags after a process restart. Nothing is assumed to have survived; each
// flagged user is initialized inside its own failure boundary.
func (c *Controller) AutoStartAgents(ctx context.Context) error {
	const op = "controller.AutoStartAgents"

	users, err := c.configs.ListActiveUsers(ctx)
	if err != nil {
		return domain.WrapOp(op, err)
	}

	for _, userID := range users {
		if err := c.InitializeForUser(ctx, userID); err != nil {
			c.logger.Error("auto-start failed for user", "user_id", userID, "error", err)
		}
	}
	c.logger.Info("auto-start complete", "users", len(users))
	return nil
}
