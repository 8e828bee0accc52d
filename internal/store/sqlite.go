package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // database/sql driver

	"flighttrack/internal/telemetry"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	captured_at TEXT NOT NULL,
	payload     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_captured_at ON records (captured_at);
`

// SQLiteStore appends records to a single per-flight database file.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// StorePath returns the database file location for a flight directory and name.
func StorePath(flightDir, flightName string) string {
	return filepath.Join(flightDir, fmt.Sprintf("flight-data_%s.db", flightName))
}

// OpenSQLite opens (or creates) the flight's store file and runs the
// idempotent schema bootstrap. Reopening an existing file resumes the same
// flight: prior records are never touched.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(path); err == nil {
		logger.Info("store file exists, resuming flight", zap.String("path", path))
	} else {
		logger.Info("creating new store file", zap.String("path", path))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	// One writer at a time by design; a second connection would only
	// contend on the file lock.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap store schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// WriteRecord appends one record.
func (s *SQLiteStore) WriteRecord(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (run_id, captured_at, payload) VALUES (?, ?, ?)`,
		rec.RunID,
		rec.CapturedAt.UTC().Format(time.RFC3339),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Rebuild drops all records and replays every raw JSON snapshot under rawDir
// in timestamp order, attributing the replayed rows to runID. It refuses to
// run when no snapshots exist, since that would only destroy data.
func (s *SQLiteStore) Rebuild(ctx context.Context, rawDir, runID string) error {
	entries, err := os.ReadDir(rawDir)
	if err != nil {
		return fmt.Errorf("read raw snapshot dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("cannot rebuild store: no raw JSON snapshots in %s", rawDir)
	}
	// Snapshot names are second-resolution timestamps, so lexical order is
	// capture order.
	sort.Strings(names)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	replayed := 0
	for _, name := range names {
		capturedAt, err := time.ParseInLocation("20060102-150405", strings.TrimSuffix(name, ".json"), time.Local)
		if err != nil {
			s.logger.Warn("skipping snapshot with unparseable name", zap.String("file", name))
			continue
		}
		data, err := os.ReadFile(filepath.Join(rawDir, name))
		if err != nil {
			return fmt.Errorf("read snapshot %s: %w", name, err)
		}
		var payload telemetry.Payload
		if err := json.Unmarshal(data, &payload); err != nil {
			s.logger.Warn("skipping malformed snapshot", zap.String("file", name), zap.Error(err))
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (run_id, captured_at, payload) VALUES (?, ?, ?)`,
			runID,
			capturedAt.UTC().Format(time.RFC3339),
			string(data),
		); err != nil {
			return fmt.Errorf("replay snapshot %s: %w", name, err)
		}
		replayed++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}
	s.logger.Info("store rebuilt from raw snapshots",
		zap.Int("snapshots", replayed),
		zap.String("raw_dir", rawDir),
	)
	return nil
}

// CountRecords reports how many records the store holds. Used by the ops
// server and by resume logging.
func (s *SQLiteStore) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}
