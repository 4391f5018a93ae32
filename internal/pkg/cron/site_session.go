package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/domain/sitevisit"
)

// SiteSessionJobs closes site visits that were never finished.
type SiteSessionJobs struct {
	siteSessionService sitevisit.SiteSessionService
	staleAfter         time.Duration
}

func NewSiteSessionJobs(siteSessionService sitevisit.SiteSessionService, staleAfter time.Duration) *SiteSessionJobs {
	return &SiteSessionJobs{
		siteSessionService: siteSessionService,
		staleAfter:         staleAfter,
	}
}

func (j *SiteSessionJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("abandon_stale_site_sessions", 1*time.Hour, j.AbandonStaleSessions)
}

// AbandonStaleSessions marks active sessions older than staleAfter as abandoned.
// The device resets to office logout the next time it refreshes such a session.
func (j *SiteSessionJobs) AbandonStaleSessions(ctx context.Context) error {
	n, err := j.siteSessionService.AbandonStaleSessions(ctx, j.staleAfter)
	if err != nil {
		return fmt.Errorf("failed to abandon stale site sessions: %w", err)
	}
	if n == 0 {
		slog.Debug("Cron: No stale site sessions found")
	}
	return nil
}

// Resetter is implemented by the HTTP rate limiter.
type Resetter interface {
	Reset()
}

// RegisterRateLimiterReset drops idle rate limiter buckets every interval.
func RegisterRateLimiterReset(scheduler *Scheduler, limiter Resetter, interval time.Duration) {
	scheduler.AddJob("reset_rate_limiters", interval, func(ctx context.Context) error {
		limiter.Reset()
		return nil
	})
}
