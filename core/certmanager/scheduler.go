package certmanager

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stencilhq/stencil/core/logger"
)

// Scheduler drives periodic renewal sweeps. Runs never overlap: if a sweep
// is still in flight when the ticker fires, that tick is dropped.
type Scheduler struct {
	manager       *Manager
	interval      time.Duration
	thresholdDays int
	log           *slog.Logger

	running  atomic.Bool
	sweeping atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	sweepsCompleted atomic.Int64
}

// SchedulerOption configures the Scheduler.
type SchedulerOption func(*Scheduler)

// WithSweepInterval sets how often a sweep starts (default 12h).
func WithSweepInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSweepThreshold sets the expiry threshold in days for each sweep.
// Defaults to the manager's configured threshold.
func WithSweepThreshold(days int) SchedulerOption {
	return func(s *Scheduler) {
		if days > 0 {
			s.thresholdDays = days
		}
	}
}

// WithSchedulerLogger sets the structured logger. Defaults to a no-op logger.
func WithSchedulerLogger(log *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// NewScheduler creates a renewal sweep scheduler bound to the manager.
func NewScheduler(manager *Manager, opts ...SchedulerOption) (*Scheduler, error) {
	if manager == nil {
		return nil, errors.New("certificate manager is required")
	}

	s := &Scheduler{
		manager:  manager,
		interval: 12 * time.Hour,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("renewal_scheduler"))
	return s, nil
}

// Start launches the sweep loop. The first sweep runs after one interval.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()

	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Sweep runs one renewal pass immediately. Concurrent calls are collapsed:
// the second caller gets a nil report and does no work.
func (s *Scheduler) Sweep(ctx context.Context) *SweepReport {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.log.WarnContext(ctx, "renewal sweep already in flight, skipping")
		return nil
	}
	defer s.sweeping.Store(false)

	start := time.Now()
	report, err := s.manager.RenewExpiring(ctx, s.thresholdDays)
	if err != nil {
		s.log.ErrorContext(ctx, "renewal sweep failed", logger.Error(err))
		return nil
	}

	s.sweepsCompleted.Add(1)
	s.log.InfoContext(ctx, "renewal sweep completed",
		logger.Elapsed(start),
		logger.Count("renewed", report.Renewed),
		logger.Count("failed", report.Failed))

	return report
}

// SweepsCompleted reports how many sweeps have finished since Start.
func (s *Scheduler) SweepsCompleted() int64 {
	return s.sweepsCompleted.Load()
}
