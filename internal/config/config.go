// Package config loads and validates flighttrack configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultEndpoint is the in-flight status API polled when no endpoint is configured.
const DefaultEndpoint = "https://wifi.inflightinternet.com/abp/v2/statusTray?fig2=true"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Flight   FlightConfig   `mapstructure:"flight"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Store    StoreConfig    `mapstructure:"store"`
	API      APIConfig      `mapstructure:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// FlightConfig identifies the tracked flight and where its data lives.
type FlightConfig struct {
	Name    string `mapstructure:"name"`
	DataDir string `mapstructure:"data_dir"`
}

// FetchConfig governs the poll loop and the HTTP client.
type FetchConfig struct {
	Endpoint        string            `mapstructure:"endpoint"`
	Headers         map[string]string `mapstructure:"headers"`
	IntervalSeconds int               `mapstructure:"interval_seconds"`
	TimeoutSeconds  int               `mapstructure:"timeout_seconds"`
	MaxRetries      int               `mapstructure:"max_retries"`
}

// SnapshotConfig controls raw snapshot persistence.
type SnapshotConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Format  string `mapstructure:"format"`
}

// StoreConfig selects and configures the durable store backend.
type StoreConfig struct {
	Kind    string `mapstructure:"kind"`
	Rebuild bool   `mapstructure:"rebuild"`

	// Postgres settings, used only when kind is "postgres".
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// APIConfig controls the optional ops HTTP server.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features and file output.
type LoggingConfig struct {
	Dir     string `mapstructure:"dir"`
	Debug   bool   `mapstructure:"debug"`
	Verbose bool   `mapstructure:"verbose"`
}

// Load builds a Config from disk/environment. Validation is the caller's
// step: CLI flags may still override values after loading.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FLIGHTTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// AutomaticEnv only surfaces keys viper already knows about. Keys with no
	// default must be bound explicitly or Unmarshal never sees their
	// environment variables.
	for _, key := range []string{
		"flight.name",
		"store.rebuild",
		"store.dsn",
		"store.max_conns",
		"logging.debug",
		"logging.verbose",
	} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("flight.data_dir", "flight_data")
	v.SetDefault("fetch.endpoint", DefaultEndpoint)
	v.SetDefault("fetch.headers", map[string]string{
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.5",
	})
	v.SetDefault("fetch.interval_seconds", 30)
	v.SetDefault("fetch.timeout_seconds", 5)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.format", "json")
	v.SetDefault("store.kind", "sqlite")
	v.SetDefault("store.table", "records")
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("logging.dir", ".")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Flight.Name == "" {
		return fmt.Errorf("flight.name is required")
	}
	if c.Flight.DataDir == "" {
		return fmt.Errorf("flight.data_dir must not be empty")
	}
	if c.Fetch.Endpoint == "" {
		return fmt.Errorf("fetch.endpoint must not be empty")
	}
	if u, err := url.Parse(c.Fetch.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("fetch.endpoint %q is not a valid URL", c.Fetch.Endpoint)
	}
	if c.Fetch.IntervalSeconds < 1 {
		return fmt.Errorf("fetch.interval_seconds must be >= 1, got %d", c.Fetch.IntervalSeconds)
	}
	if c.Fetch.TimeoutSeconds < 1 {
		return fmt.Errorf("fetch.timeout_seconds must be >= 1, got %d", c.Fetch.TimeoutSeconds)
	}
	if c.Fetch.MaxRetries < 1 {
		return fmt.Errorf("fetch.max_retries must be >= 1, got %d", c.Fetch.MaxRetries)
	}
	switch c.Snapshot.Format {
	case "json", "csv":
	default:
		return fmt.Errorf("snapshot.format must be json or csv, got %q", c.Snapshot.Format)
	}
	switch c.Store.Kind {
	case "sqlite", "noop":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.kind is postgres")
		}
	default:
		return fmt.Errorf("unknown store.kind %q", c.Store.Kind)
	}
	if c.API.Enabled && c.API.Addr == "" {
		return fmt.Errorf("api.addr must be set when api.enabled is true")
	}
	if c.Logging.Dir == "" {
		return fmt.Errorf("logging.dir must not be empty")
	}
	return nil
}

// Interval returns the poll interval as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Fetch.IntervalSeconds) * time.Second
}

// Timeout returns the per-request timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// FlightDir returns the directory holding this flight's store and snapshots.
func (c Config) FlightDir() string {
	return filepath.Join(c.Flight.DataDir, c.Flight.Name)
}
