package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flighttrack/internal/telemetry"
)

func openTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	dir := t.TempDir()
	path := StorePath(dir, "test-flight")
	st, err := OpenSQLite(context.Background(), path, zap.NewNop())
	require.NoError(t, err)
	return st, path
}

func TestStorePath(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		filepath.Join("flight_data", "DL123", "flight-data_DL123.db"),
		StorePath(filepath.Join("flight_data", "DL123"), "DL123"),
	)
}

func TestWriteRecordAppends(t *testing.T) {
	t.Parallel()

	st, _ := openTestStore(t)
	defer func() { require.NoError(t, st.Close()) }()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		err := st.WriteRecord(ctx, Record{
			RunID:      "run-1",
			CapturedAt: time.Now(),
			Payload:    telemetry.Payload{"seq": float64(i)},
		})
		require.NoError(t, err)
	}

	n, err := st.CountRecords(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestReopenResumesWithoutDataLoss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	path := StorePath(dir, "resume")

	st, err := OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, st.WriteRecord(ctx, Record{
		RunID:      "run-1",
		CapturedAt: time.Now(),
		Payload:    telemetry.Payload{"leg": "first"},
	}))
	require.NoError(t, st.Close())

	// Second run against the same file: bootstrap must not drop rows.
	st2, err := OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, st2.Close()) }()

	n, err := st2.CountRecords(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, st2.WriteRecord(ctx, Record{
		RunID:      "run-2",
		CapturedAt: time.Now(),
		Payload:    telemetry.Payload{"leg": "second"},
	}))
	n, err = st2.CountRecords(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestRebuildReplaysSnapshots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, _ := openTestStore(t)
	defer func() { require.NoError(t, st.Close()) }()

	rawDir := t.TempDir()
	writeSnapshotFile(t, rawDir, "20260825-120000.json", telemetry.Payload{"seq": float64(1)})
	writeSnapshotFile(t, rawDir, "20260825-120030.json", telemetry.Payload{"seq": float64(2)})
	// Non-JSON and garbage entries are skipped, not fatal.
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, "20260825-120015.csv"), []byte("a,b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, "notes.json"), []byte(`{}`), 0o644))

	// A stale record from a previous run should vanish on rebuild.
	require.NoError(t, st.WriteRecord(ctx, Record{
		RunID:      "stale",
		CapturedAt: time.Now(),
		Payload:    telemetry.Payload{"stale": true},
	}))

	require.NoError(t, st.Rebuild(ctx, rawDir, "rebuild-run"))

	n, err := st.CountRecords(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestRebuildRefusesEmptyRawDir(t *testing.T) {
	t.Parallel()

	st, _ := openTestStore(t)
	defer func() { require.NoError(t, st.Close()) }()

	err := st.Rebuild(context.Background(), t.TempDir(), "run")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no raw JSON snapshots")
}

func TestNoOpStore(t *testing.T) {
	t.Parallel()

	var s Store = NoOp{}
	require.NoError(t, s.WriteRecord(context.Background(), Record{}))
	require.NoError(t, s.Close())
}

func writeSnapshotFile(t *testing.T, dir, name string, payload telemetry.Payload) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}
