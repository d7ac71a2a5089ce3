package usecase

import (
	"context"
	"log/slog"
	"time"

	"briefly/internal/domain"
)

// BriefingRefresher regenerates a briefing, bypassing any cached entry.
type BriefingRefresher interface {
	Refresh(ctx context.Context, userID string, scope domain.Scope) (*domain.FocusBriefing, error)
}

// dailyMarker names the persisted last-run marker for the daily job.
const dailyMarker = "daily_briefing"

// DailyBriefingJob regenerates the today briefing for every active user
// whose config enables the focus capability. A persisted last-run marker
// makes the job skip when it already ran on the current calendar day, so a
// restart near the trigger time neither skips nor doubles a run.
type DailyBriefingJob struct {
	controller *Controller
	cache      BriefingRefresher
	markers    domain.RunMarkerStore
	loc        *time.Location
	logger     *slog.Logger
	now        func() time.Time // for testing
}

// NewDailyBriefingJob creates the job. loc determines which calendar day
// the marker comparison uses.
func NewDailyBriefingJob(controller *Controller, cache BriefingRefresher, markers domain.RunMarkerStore, loc *time.Location, logger *slog.Logger) *DailyBriefingJob {
	if loc == nil {
		loc = time.Local
	}
	return &DailyBriefingJob{
		controller: controller,
		cache:      cache,
		markers:    markers,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one daily pass. Each user's regeneration sits in its own
// failure boundary; one user's failure is logged and the loop continues.
func (j *DailyBriefingJob) Run(ctx context.Context) error {
	now := j.now().In(j.loc)

	last, ok, err := j.markers.LastRun(ctx, dailyMarker)
	if err != nil {
		j.logger.Warn("last-run marker unavailable, running anyway", "error", err)
	}
	if ok && sameDay(last.In(j.loc), now) {
		j.logger.Info("daily briefing already ran today, skipping", "last_run", last)
		return nil
	}

	users := j.controller.GetActiveUsers()
	var generated, failed int
	for _, userID := range users {
		cfg, err := j.controller.loadUsable(ctx, "daily.Run", userID)
		if err != nil {
			j.logger.Warn("skipping user for daily briefing", "user_id", userID, "error", err)
			continue
		}
		if !cfg.AgentEnabled(domain.AgentFocus) {
			continue
		}
		if _, err := j.cache.Refresh(ctx, userID, domain.ScopeToday); err != nil {
			failed++
			j.logger.Error("daily briefing failed for user", "user_id", userID, "error", err)
			continue
		}
		generated++
	}

	if err := j.markers.SetLastRun(ctx, dailyMarker, now); err != nil {
		j.logger.Error("persisting last-run marker failed", "error", err)
	}

	j.logger.Info("daily briefing run complete",
		"users", len(users), "generated", generated, "failed", failed)
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
