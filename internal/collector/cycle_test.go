package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flighttrack/internal/store"
	"flighttrack/internal/telemetry"
)

type fakeFetcher struct {
	payload telemetry.Payload
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(context.Context) (telemetry.Payload, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

type fakeSnapshots struct {
	err   error
	calls int
	path  string
}

func (s *fakeSnapshots) Write(_ telemetry.Payload, capturedAt time.Time) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	s.path = "raw/" + capturedAt.Format("20060102-150405") + ".json"
	return s.path, nil
}

type fakeStore struct {
	mu      sync.Mutex
	err     error
	records []store.Record
	closed  int
}

func (s *fakeStore) WriteRecord(_ context.Context, rec store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func TestRunCycleSuccessWritesBoth(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{payload: telemetry.Payload{"state": "up"}}
	snaps := &fakeSnapshots{}
	st := &fakeStore{}

	c := New(fetcher, snaps, st, "run-1", zap.NewNop())
	result := c.RunCycle(context.Background())

	require.True(t, result.Success())
	require.NoError(t, result.SnapshotErr)
	require.NoError(t, result.StoreErr)
	require.Equal(t, 1, snaps.calls)
	require.Equal(t, 1, st.count())
	require.Equal(t, "run-1", st.records[0].RunID)
	require.Equal(t, telemetry.Payload{"state": "up"}, st.records[0].Payload)
	require.Equal(t, snaps.path, result.SnapshotPath)
}

func TestRunCycleFetchFailureHasNoSideEffects(t *testing.T) {
	t.Parallel()

	fetchErr := &telemetry.FetchError{Kind: telemetry.Transient, Attempts: 4, Err: errors.New("503")}
	fetcher := &fakeFetcher{err: fetchErr}
	snaps := &fakeSnapshots{}
	st := &fakeStore{}

	c := New(fetcher, snaps, st, "run-1", zap.NewNop())
	result := c.RunCycle(context.Background())

	require.False(t, result.Success())
	require.ErrorIs(t, result.Err, fetchErr)
	require.Zero(t, snaps.calls)
	require.Zero(t, st.count())
}

func TestRunCycleSnapshotFailureDoesNotBlockStore(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{payload: telemetry.Payload{"state": "up"}}
	snaps := &fakeSnapshots{err: errors.New("disk full")}
	st := &fakeStore{}

	c := New(fetcher, snaps, st, "run-1", zap.NewNop())
	result := c.RunCycle(context.Background())

	// Capture succeeded even though durability partially failed.
	require.True(t, result.Success())
	require.Error(t, result.SnapshotErr)
	require.NoError(t, result.StoreErr)
	require.Equal(t, 1, st.count())
}

func TestRunCycleStoreFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{payload: telemetry.Payload{"state": "up"}}
	st := &fakeStore{err: errors.New("locked")}

	c := New(fetcher, nil, st, "run-1", zap.NewNop())
	result := c.RunCycle(context.Background())

	require.True(t, result.Success())
	require.Error(t, result.StoreErr)
}

func TestRunCycleNilSnapshotsSkipsRawWrite(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{payload: telemetry.Payload{"state": "up"}}
	st := &fakeStore{}

	c := New(fetcher, nil, st, "run-1", zap.NewNop())
	result := c.RunCycle(context.Background())

	require.True(t, result.Success())
	require.Empty(t, result.SnapshotPath)
	require.Equal(t, 1, st.count())
}
