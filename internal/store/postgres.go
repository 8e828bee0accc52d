package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the Postgres connection pool.
type PostgresConfig struct {
	DSN      string
	Table    string
	MaxConns int32
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresStore appends records to a central Postgres database, for setups
// where the collector feeds a shared archive instead of a local file.
type PostgresStore struct {
	pool  execCloser
	table string
}

// OpenPostgres connects a pool and ensures the records table exists.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, table: table}
	if err := s.bootstrap(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreWithPool constructs a store from an existing pool
// (primarily for testing). The schema bootstrap is skipped.
func NewPostgresStoreWithPool(pool execCloser, table string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

func (s *PostgresStore) bootstrap(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL,
	payload     JSONB NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("bootstrap postgres schema: %w", err)
	}
	return nil
}

// WriteRecord appends one record.
func (s *PostgresStore) WriteRecord(ctx context.Context, rec Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres store is not configured")
	}
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (run_id, captured_at, payload) VALUES ($1, $2, $3)`,
		s.table,
	)
	if _, err := s.pool.Exec(ctx, query, rec.RunID, rec.CapturedAt, payload); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
