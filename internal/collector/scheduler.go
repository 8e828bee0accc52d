package collector

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CycleRunner is what the scheduler drives once per tick.
type CycleRunner interface {
	RunCycle(ctx context.Context) CycleResult
}

// Scheduler triggers one cycle per interval. Cycles run synchronously inside
// the scheduling loop, so at most one is ever in flight; ticks that elapse
// while a cycle is still running are dropped, never queued.
type Scheduler struct {
	interval time.Duration
	runner   CycleRunner
	logger   *zap.Logger

	// onResult, when set, receives every completed cycle (used to feed the
	// ops server's status endpoint).
	onResult func(CycleResult)
}

// NewScheduler builds a Scheduler.
func NewScheduler(interval time.Duration, runner CycleRunner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		interval: interval,
		runner:   runner,
		logger:   logger,
	}
}

// OnResult registers a callback invoked after each cycle completes. Must be
// called before Run.
func (s *Scheduler) OnResult(fn func(CycleResult)) {
	s.onResult = fn
}

// Run polls once immediately, then once per interval, until ctx is
// cancelled. Cancellation is observed between cycles: an in-flight cycle
// always runs to completion so no partial record is left behind.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
			// Drop any tick that elapsed while the cycle ran; the next
			// cycle waits for a fresh interval instead of firing back to back.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// The cycle is non-preemptible: once started it runs detached from the
	// shutdown signal, so an already-fetched payload is still persisted.
	result := s.runner.RunCycle(context.WithoutCancel(ctx))
	if s.onResult != nil {
		s.onResult(result)
	}
}
