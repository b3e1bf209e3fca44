/**
 * @description
 * Cron-driven cleanup of stale unconfirmed payments. An unconfirmed payment
 * holds no money, only a reserved idempotency token; how long such tokens are
 * retained is an operator decision, so the sweep is parameterized and disabled
 * until a retention TTL is configured. Confirmed payments are never touched.
 */

package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/drdaeman/payments-api-demo/internal/metrics"
	"github.com/drdaeman/payments-api-demo/internal/store"
	"github.com/robfig/cron/v3"
)

// Sweeper manages the unconfirmed payment sweep job.
type Sweeper struct {
	cron     *cron.Cron
	repo     store.Repository
	schedule string
	ttl      time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a new sweeper instance.
func NewSweeper(repo store.Repository, schedule string, ttl time.Duration, logger *slog.Logger) *Sweeper {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Sweeper{
		cron:     c,
		repo:     repo,
		schedule: schedule,
		ttl:      ttl,
		logger:   logger,
	}
}

// Start registers the sweep job and starts the scheduler. With a zero TTL no
// job is registered and the scheduler stays idle.
func (s *Sweeper) Start() {
	if s.ttl <= 0 {
		s.logger.Info("unconfirmed payment sweeper disabled")
		return
	}

	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		s.logger.Error("failed to schedule unconfirmed payment sweep", "error", err)
		return
	}
	s.logger.Info("scheduled unconfirmed payment sweep", "schedule", s.schedule, "ttl", s.ttl.String())
	s.cron.Start()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.ttl)
	removed, err := s.repo.DeleteUnconfirmedPaymentsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("unconfirmed payment sweep failed", "error", err)
		return
	}
	if removed > 0 {
		metrics.RecordUnconfirmedSwept(removed)
		s.logger.Info("swept stale unconfirmed payments", "removed", removed, "cutoff", cutoff.Format(time.RFC3339))
	}
}

// Stop gracefully stops the scheduler.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}
