// Package worker drives the periodic expiration sweeps.
package worker

import (
	"context"
	"time"

	"status-promo-marketplace/internal/core/ports"

	"github.com/rs/zerolog"
)

// Options sets the sweep cadence.
type Options struct {
	HourlyInterval time.Duration
	DailyInterval  time.Duration
	RunOnStart     bool
}

// Scheduler runs the hourly promotion sweep and the daily cleanup on tickers.
// Passes never overlap: each tick runs to completion before the next select.
type Scheduler struct {
	sweeper ports.ExpirationService
	opts    Options
	log     zerolog.Logger
}

// NewScheduler creates a scheduler. Non-positive intervals fall back to one
// hour and one day.
func NewScheduler(sweeper ports.ExpirationService, opts Options, log zerolog.Logger) *Scheduler {
	if opts.HourlyInterval <= 0 {
		opts.HourlyInterval = time.Hour
	}
	if opts.DailyInterval <= 0 {
		opts.DailyInterval = 24 * time.Hour
	}
	return &Scheduler{
		sweeper: sweeper,
		opts:    opts,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	hourly := time.NewTicker(s.opts.HourlyInterval)
	daily := time.NewTicker(s.opts.DailyInterval)
	defer hourly.Stop()
	defer daily.Stop()

	s.log.Info().
		Dur("hourly_interval", s.opts.HourlyInterval).
		Dur("daily_interval", s.opts.DailyInterval).
		Msg("scheduler started")

	if s.opts.RunOnStart {
		s.RunHourly(ctx)
		s.RunDaily(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return nil
		case <-hourly.C:
			s.RunHourly(ctx)
		case <-daily.C:
			s.RunDaily(ctx)
		}
	}
}

// RunHourly expires promotions whose proof deadline passed.
func (s *Scheduler) RunHourly(ctx context.Context) {
	s.run(ctx, "hourly", s.sweeper.ExpireStalePromotions)
}

// RunDaily runs the catch-all cleanup and ends overdue campaigns.
func (s *Scheduler) RunDaily(ctx context.Context) {
	s.run(ctx, "daily", s.sweeper.RunDailyCleanup)
}

func (s *Scheduler) run(ctx context.Context, job string, fn func(context.Context) (*ports.SweepResult, error)) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	res, err := fn(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("job", job).Msg("sweep failed")
		return
	}
	if res.LockNotAcquired {
		s.log.Debug().Str("job", job).Msg("sweep skipped, another instance holds the lock")
		return
	}
	s.log.Info().
		Str("job", job).
		Int("candidates", res.Candidates).
		Int("expired", res.Expired).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Int("campaigns_expired", res.CampaignsExpired).
		Dur("took", time.Since(start)).
		Msg("sweep finished")
}
