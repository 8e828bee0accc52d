// Package api exposes the optional ops HTTP interface.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"flighttrack/internal/collector"
	"flighttrack/internal/metrics"
)

// Server wires HTTP handlers to the collector's status holder. It is a pure
// observation surface: health, metrics, and the latest cycle summary.
type Server struct {
	router chi.Router
	status *collector.StatusHolder
	flight string
	runID  string
	logger *zap.Logger
}

// NewServer constructs a Server with routes mounted.
func NewServer(status *collector.StatusHolder, flight, runID string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		status: status,
		flight: flight,
		runID:  runID,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.getStatus)
	})
	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// Ready once at least one cycle has run, successful or not.
	if _, ok := s.status.Latest(); !ok {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for first cycle"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	Flight       string    `json:"flight"`
	RunID        string    `json:"run_id"`
	CycleStart   time.Time `json:"cycle_start"`
	CycleEnd     time.Time `json:"cycle_end"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	SnapshotPath string    `json:"snapshot_path,omitempty"`
	SnapshotErr  string    `json:"snapshot_error,omitempty"`
	StoreErr     string    `json:"store_error,omitempty"`
	PayloadKeys  int       `json:"payload_keys"`
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	result, ok := s.status.Latest()
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cycle has completed yet"})
		return
	}
	resp := statusResponse{
		Flight:       s.flight,
		RunID:        s.runID,
		CycleStart:   result.Start,
		CycleEnd:     result.End,
		Success:      result.Success(),
		SnapshotPath: result.SnapshotPath,
		PayloadKeys:  len(result.Payload),
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	if result.SnapshotErr != nil {
		resp.SnapshotErr = result.SnapshotErr.Error()
	}
	if result.StoreErr != nil {
		resp.StoreErr = result.StoreErr.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", zap.Error(err))
	}
}
