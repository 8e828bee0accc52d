// Command flighttrack polls the in-flight status API and records every
// response for later analysis.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flighttrack/internal/app"
	"flighttrack/internal/config"
	"flighttrack/internal/logging"
)

const version = "0.1.0"

type cliFlags struct {
	configFile   string
	flightName   string
	dataDir      string
	storeRaw     bool
	dataFormat   string
	interval     int
	timeout      int
	maxRetries   int
	rebuildStore bool
	logDir       string
	verbose      bool
	debug        bool
}

func newRootCmd() (*cobra.Command, *cliFlags) {
	flags := &cliFlags{}

	cmd := &cobra.Command{
		Use:     "flighttrack",
		Short:   "Continuously record in-flight connectivity telemetry.",
		Version: version,
		Long: `flighttrack polls the aircraft's status API on a fixed interval and
persists every successful response: optionally as raw timestamped snapshot
files, and always as records in a per-flight store that survives restarts.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.configFile, "config", "", "config file (YAML)")
	cmd.Flags().StringVarP(&flags.flightName, "flight-name", "n", "", "name of your flight, allows resuming a previous run")
	cmd.Flags().StringVarP(&flags.dataDir, "data-dir", "d", "flight_data", "directory to store flight data in")
	cmd.Flags().BoolVarP(&flags.storeRaw, "store-raw", "s", false, "store raw snapshots in addition to store records")
	cmd.Flags().StringVarP(&flags.dataFormat, "data-format", "f", "json", "raw snapshot format (json or csv)")
	cmd.Flags().IntVarP(&flags.interval, "interval", "i", 30, "seconds between fetch cycles")
	cmd.Flags().IntVarP(&flags.timeout, "timeout", "t", 5, "per-request timeout in seconds")
	cmd.Flags().IntVarP(&flags.maxRetries, "max-retries", "r", 3, "max retries per fetch cycle")
	cmd.Flags().BoolVarP(&flags.rebuildStore, "rebuild-store", "b", false, "rebuild the store from raw snapshots before starting")
	cmd.Flags().StringVarP(&flags.logDir, "log-dir", "l", ".", "directory for the log file")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "also log to stderr")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	return cmd, flags
}

// buildConfig loads file/env configuration, applies explicit CLI flags on
// top, and validates the merged result.
func buildConfig(cmd *cobra.Command, flags *cliFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return config.Config{}, err
	}

	set := cmd.Flags().Changed
	if set("flight-name") || cfg.Flight.Name == "" {
		cfg.Flight.Name = flags.flightName
	}
	if set("data-dir") {
		cfg.Flight.DataDir = flags.dataDir
	}
	if set("store-raw") {
		cfg.Snapshot.Enabled = flags.storeRaw
	}
	if set("data-format") {
		cfg.Snapshot.Format = flags.dataFormat
	}
	if set("interval") {
		cfg.Fetch.IntervalSeconds = flags.interval
	}
	if set("timeout") {
		cfg.Fetch.TimeoutSeconds = flags.timeout
	}
	if set("max-retries") {
		cfg.Fetch.MaxRetries = flags.maxRetries
	}
	if set("rebuild-store") {
		cfg.Store.Rebuild = flags.rebuildStore
	}
	if set("log-dir") {
		cfg.Logging.Dir = flags.logDir
	}
	if set("verbose") {
		cfg.Logging.Verbose = flags.verbose
	}
	if set("debug") {
		cfg.Logging.Debug = flags.debug
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, flags *cliFlags) error {
	cfg, err := buildConfig(cmd, flags)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logPath, err := logging.New(logging.Options{
		Dir:     cfg.Logging.Dir,
		Debug:   cfg.Logging.Debug,
		Verbose: cfg.Logging.Verbose,
	})
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	printWelcome(cfg, logPath)
	logConfig(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	fmt.Printf("Requesting new data every %d seconds. Press Ctrl+C to exit.\n", cfg.Fetch.IntervalSeconds)
	a.Run(ctx)

	logger.Info("interrupt received, exiting")
	return nil
}

func printWelcome(cfg config.Config, logPath string) {
	fmt.Printf("flighttrack %s: tracking flight %q\n", version, cfg.Flight.Name)
	if logPath != "" {
		fmt.Printf("Logging to %s\n", logPath)
	}
}

// logConfig echoes the effective configuration into the log, the way the
// operator will want to see it when digging through a flight's log file.
func logConfig(logger *zap.Logger, cfg config.Config) {
	logger.Info("effective configuration",
		zap.String("endpoint", cfg.Fetch.Endpoint),
		zap.Int("interval_seconds", cfg.Fetch.IntervalSeconds),
		zap.Int("timeout_seconds", cfg.Fetch.TimeoutSeconds),
		zap.Int("max_retries", cfg.Fetch.MaxRetries),
		zap.String("data_dir", cfg.Flight.DataDir),
		zap.Bool("store_raw", cfg.Snapshot.Enabled),
		zap.String("raw_format", cfg.Snapshot.Format),
		zap.String("store_kind", cfg.Store.Kind),
		zap.Bool("rebuild", cfg.Store.Rebuild),
		zap.Bool("api_enabled", cfg.API.Enabled),
	)
}

func main() {
	cmd, _ := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
