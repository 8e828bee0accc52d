package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flighttrack/internal/collector"
	"flighttrack/internal/telemetry"
)

func newTestServer() (*Server, *collector.StatusHolder) {
	holder := collector.NewStatusHolder()
	return NewServer(holder, "DL123", "run-1", zap.NewNop()), holder
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyzBeforeAndAfterFirstCycle(t *testing.T) {
	t.Parallel()

	srv, holder := newTestServer()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	holder.Set(collector.CycleResult{Start: time.Now(), End: time.Now()})

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusBeforeFirstCycle(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusReturnsLatestCycle(t *testing.T) {
	t.Parallel()

	srv, holder := newTestServer()
	start := time.Date(2026, 8, 25, 14, 30, 0, 0, time.UTC)
	holder.Set(collector.CycleResult{
		Start:        start,
		End:          start.Add(800 * time.Millisecond),
		Payload:      telemetry.Payload{"altitude": float64(35000), "state": "up"},
		SnapshotPath: "flight_data/DL123/raw/20260825-143000.json",
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "DL123", resp.Flight)
	require.Equal(t, "run-1", resp.RunID)
	require.True(t, resp.Success)
	require.Empty(t, resp.Error)
	require.Equal(t, 2, resp.PayloadKeys)
	require.Equal(t, "flight_data/DL123/raw/20260825-143000.json", resp.SnapshotPath)
}

func TestStatusCarriesFailureDetail(t *testing.T) {
	t.Parallel()

	srv, holder := newTestServer()
	holder.Set(collector.CycleResult{
		Start: time.Now(),
		End:   time.Now(),
		Err:   errors.New("fetch failed (transient, 4 attempts): 503"),
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.Contains(t, resp.Error, "transient")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
