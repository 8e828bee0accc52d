// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flighttrack/internal/api"
	"flighttrack/internal/collector"
	"flighttrack/internal/config"
	"flighttrack/internal/metrics"
	"flighttrack/internal/snapshot"
	"flighttrack/internal/store"
	"flighttrack/internal/telemetry"
)

// App holds all the shared, long-lived services for one tracking run. It is
// initialized once at startup and torn down exactly once on shutdown.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	runID     string
	fetcher   *telemetry.Fetcher
	store     store.Store
	scheduler *collector.Scheduler
	status    *collector.StatusHolder
	apiServer *http.Server

	closeOnce sync.Once
	closeErr  error
}

// New wires the fetcher, writers, store, and scheduler from configuration.
// It fails fast: any error here is a startup configuration problem and the
// process should exit non-zero before the scheduler starts.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()
	runID := uuid.NewString()
	logger = logger.With(zap.String("flight", cfg.Flight.Name), zap.String("run_id", runID))
	logger.Info("initializing services")

	flightDir := cfg.FlightDir()
	if err := os.MkdirAll(flightDir, 0o755); err != nil {
		return nil, fmt.Errorf("create flight directory %s: %w", flightDir, err)
	}
	rawDir := filepath.Join(flightDir, "raw")
	if cfg.Snapshot.Enabled || cfg.Store.Rebuild {
		if err := os.MkdirAll(rawDir, 0o755); err != nil {
			return nil, fmt.Errorf("create raw snapshot directory %s: %w", rawDir, err)
		}
	}

	st, err := buildStore(ctx, cfg, flightDir, rawDir, runID, logger)
	if err != nil {
		return nil, err
	}

	fetcher := telemetry.NewFetcher(telemetry.Config{
		Endpoint:   cfg.Fetch.Endpoint,
		Headers:    cfg.Fetch.Headers,
		Timeout:    cfg.Timeout(),
		MaxRetries: cfg.Fetch.MaxRetries,
	}, logger)

	var snaps collector.SnapshotWriter
	if cfg.Snapshot.Enabled {
		snaps = snapshot.NewWriter(rawDir, snapshot.Format(cfg.Snapshot.Format), logger)
		logger.Info("raw snapshot storage enabled",
			zap.String("dir", rawDir),
			zap.String("format", cfg.Snapshot.Format),
		)
	}

	coll := collector.New(fetcher, snaps, st, runID, logger)
	sched := collector.NewScheduler(cfg.Interval(), coll, logger)
	status := collector.NewStatusHolder()
	sched.OnResult(status.Set)

	a := &App{
		cfg:       cfg,
		logger:    logger,
		runID:     runID,
		fetcher:   fetcher,
		store:     st,
		scheduler: sched,
		status:    status,
	}

	if cfg.API.Enabled {
		srv := api.NewServer(status, cfg.Flight.Name, runID, logger)
		a.apiServer = &http.Server{
			Addr:              cfg.API.Addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	logger.Info("services initialized", zap.String("store", cfg.Store.Kind))
	return a, nil
}

func buildStore(ctx context.Context, cfg config.Config, flightDir, rawDir, runID string, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Kind {
	case "sqlite":
		st, err := store.OpenSQLite(ctx, store.StorePath(flightDir, cfg.Flight.Name), logger)
		if err != nil {
			return nil, fmt.Errorf("initialize store: %w", err)
		}
		if cfg.Store.Rebuild {
			if err := st.Rebuild(ctx, rawDir, runID); err != nil {
				_ = st.Close()
				return nil, err
			}
		}
		if n, err := st.CountRecords(ctx); err == nil && n > 0 {
			logger.Info("resuming flight store", zap.Int64("records", n))
		}
		return st, nil
	case "postgres":
		if cfg.Store.Rebuild {
			return nil, fmt.Errorf("store rebuild is only supported for the sqlite store")
		}
		st, err := store.OpenPostgres(ctx, store.PostgresConfig{
			DSN:      cfg.Store.DSN,
			Table:    cfg.Store.Table,
			MaxConns: cfg.Store.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize store: %w", err)
		}
		return st, nil
	case "noop":
		logger.Info("using no-op store, records will be discarded")
		return store.NoOp{}, nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}
}

// RunID returns the unique id of this process run.
func (a *App) RunID() string { return a.runID }

// Run starts the ops server (when enabled) and blocks in the scheduling loop
// until ctx is cancelled. The in-flight cycle always completes before Run
// returns.
func (a *App) Run(ctx context.Context) {
	if a.apiServer != nil {
		go func() {
			a.logger.Info("ops server listening", zap.String("addr", a.apiServer.Addr))
			if err := a.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("ops server failed", zap.Error(err))
			}
		}()
	}

	a.scheduler.Run(ctx)
}

// Close gracefully shuts down all services. Safe to call multiple times;
// the store handle is closed exactly once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.logger.Info("shutting down services")

		if a.apiServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("ops server shutdown", zap.Error(err))
			}
		}

		a.fetcher.Close()

		if err := a.store.Close(); err != nil {
			a.closeErr = err
			a.logger.Error("closing store", zap.Error(err))
		}

		// Best effort: stderr sync fails on some platforms.
		_ = a.logger.Sync()
	})
	return a.closeErr
}
