package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pantheon-ops/tenantd/pkg/observability"
)

// Scheduler runs the engine on a cron schedule.
type Scheduler struct {
	engine  *Engine
	cron    *cron.Cron
	logger  *observability.Logger
	opts    Options
	timeout time.Duration
}

// NewScheduler creates a scheduler driving engine with opts on each tick.
func NewScheduler(engine *Engine, opts Options, timeout time.Duration, logger *observability.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Scheduler{
		engine:  engine,
		cron:    cron.New(),
		logger:  logger,
		opts:    opts,
		timeout: timeout,
	}
}

// Start registers the schedule and begins ticking. The cron expression uses
// the standard five-field format.
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, s.run)
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.logger.WithField("schedule", schedule).Info("reconciliation scheduler started")
	return nil
}

// Stop halts the ticker and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("reconciliation scheduler stopped")
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.engine.Reconcile(ctx, s.opts); err != nil {
		s.logger.WithError(err).Error("scheduled reconciliation run failed")
	}
}
