// Package collector runs the scheduled fetch-and-persist loop.
package collector

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"flighttrack/internal/metrics"
	"flighttrack/internal/store"
	"flighttrack/internal/telemetry"
)

// Fetcher is the fetch side of one cycle.
type Fetcher interface {
	Fetch(ctx context.Context) (telemetry.Payload, error)
}

// SnapshotWriter persists one raw capture.
type SnapshotWriter interface {
	Write(payload telemetry.Payload, capturedAt time.Time) (string, error)
}

// CycleResult records the outcome of a single tick. A cycle is successful
// when the fetch succeeded; writer failures are reported separately because
// capture and durability are separable concerns.
type CycleResult struct {
	Start        time.Time
	End          time.Time
	Payload      telemetry.Payload
	Err          error
	SnapshotPath string
	SnapshotErr  error
	StoreErr     error
}

// Success reports whether the fetch itself succeeded.
func (r CycleResult) Success() bool { return r.Err == nil }

// Collector composes fetcher, snapshot writer, and store for one tick.
type Collector struct {
	fetcher   Fetcher
	snapshots SnapshotWriter // nil when raw storage is disabled
	store     store.Store
	runID     string
	now       func() time.Time
	logger    *zap.Logger
}

// New builds a Collector. snapshots may be nil to disable raw captures.
func New(fetcher Fetcher, snapshots SnapshotWriter, st store.Store, runID string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		fetcher:   fetcher,
		snapshots: snapshots,
		store:     st,
		runID:     runID,
		now:       time.Now,
		logger:    logger,
	}
}

// RunCycle executes one fetch-then-persist tick. No error escapes as a
// panic or process exit; everything lands in the CycleResult and the log.
func (c *Collector) RunCycle(ctx context.Context) CycleResult {
	result := CycleResult{Start: c.now()}

	payload, err := c.fetcher.Fetch(ctx)
	if err != nil {
		result.Err = err
		result.End = c.now()
		var ferr *telemetry.FetchError
		kind := "unknown"
		if errors.As(err, &ferr) {
			kind = ferr.Kind.String()
		}
		metrics.ObserveCycle("failed")
		metrics.ObserveFetchFailure(kind)
		c.logger.Error("fetch failed, skipping tick",
			zap.String("kind", kind),
			zap.Error(err),
		)
		return result
	}
	result.Payload = payload
	capturedAt := c.now()

	if c.snapshots != nil {
		path, err := c.snapshots.Write(payload, capturedAt)
		if err != nil {
			// A failed snapshot must not abort the store write.
			result.SnapshotErr = err
			metrics.ObserveSnapshotFailure()
			c.logger.Error("snapshot write failed", zap.Error(err))
		} else {
			result.SnapshotPath = path
		}
	}

	if err := c.store.WriteRecord(ctx, store.Record{
		RunID:      c.runID,
		CapturedAt: capturedAt,
		Payload:    payload,
	}); err != nil {
		result.StoreErr = err
		metrics.ObserveStoreFailure()
		c.logger.Error("store write failed", zap.Error(err))
	}

	result.End = c.now()
	metrics.ObserveCycle("succeeded")
	metrics.SetLastSuccess(capturedAt)
	c.logger.Info("tick complete",
		zap.Duration("took", result.End.Sub(result.Start)),
		zap.Int("keys", len(payload)),
		zap.Bool("snapshot", result.SnapshotPath != ""),
	)
	return result
}
