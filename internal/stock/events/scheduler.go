package events

import (
	"context"
	"time"

	"github.com/stockledger/stockledger-backend/pkg/logger"
)

// Job is one run of a periodic task.
type Job func(ctx context.Context) error

// Scheduler runs a job immediately and then on every tick until stopped.
type Scheduler struct {
	name     string
	job      Job
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a scheduler for job.
func NewScheduler(name string, interval time.Duration, job Job, log *logger.Logger) *Scheduler {
	return &Scheduler{
		name:     name,
		job:      job,
		interval: interval,
		logger:   log.WithComponent(name),
	}
}

// RelayJob adapts an OutboxRelay to a Job.
func RelayJob(r *OutboxRelay) Job {
	return func(ctx context.Context) error {
		_, err := r.RunOnce(ctx)
		return err
	}
}

// ScanJob adapts an ExpiryScanner to a Job.
func ScanJob(s *ExpiryScanner) Job {
	return func(ctx context.Context) error {
		_, err := s.Scan(ctx)
		return err
	}
}

// Start starts the scheduler in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")

		s.runOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("scheduler stopped")
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

// Stop cancels the scheduler and waits for the running job to return.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.job(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Msg("scheduled job failed")
	}
}
