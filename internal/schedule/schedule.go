// Package schedule repeats ingestion on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"github.com/csr-ugra/hh-vacancy-loader/internal/log"
	"github.com/robfig/cron/v3"
	"sync"
)

type Job func(ctx context.Context) error

// Scheduler wraps robfig/cron. A run that is still in progress when the next
// tick fires makes that tick a no-op.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	job    Job
	logger log.Logger
	mu     sync.Mutex
}

// New validates spec, a standard cron expression or a descriptor such as
// "@every 6h".
func New(spec string, job Job, logger log.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cron.PrintfLogger(logger))),
		spec:   spec,
		job:    job,
		logger: logger.WithField("Schedule", spec),
	}, nil
}

// Run executes the job once right away and then on every tick until ctx is
// done. It returns after the job in progress, if any, has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runJob(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started")

	s.runJob(ctx)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")

	return nil
}

func (s *Scheduler) runJob(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if !s.mu.TryLock() {
		s.logger.Warn("previous ingestion still running, skipping tick")
		return
	}
	defer s.mu.Unlock()

	if err := s.job(ctx); err != nil {
		s.logger.WithField("Error", err).Error("scheduled ingestion failed")
	}
}
