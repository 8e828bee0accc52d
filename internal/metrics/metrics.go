// Package metrics exposes Prometheus collectors for the collector loop.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cyclesTotal           *prometheus.CounterVec
	fetchFailuresTotal    *prometheus.CounterVec
	snapshotFailuresTotal prometheus.Counter
	storeFailuresTotal    prometheus.Counter
	lastSuccessTimestamp  prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		cyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flighttrack_cycles_total",
				Help: "Total number of fetch cycles, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flighttrack_fetch_failures_total",
				Help: "Total number of failed fetches, labeled by failure kind.",
			},
			[]string{"kind"},
		)

		snapshotFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "flighttrack_snapshot_write_failures_total",
				Help: "Total number of raw snapshot writes that failed.",
			},
		)

		storeFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "flighttrack_store_write_failures_total",
				Help: "Total number of store writes that failed.",
			},
		)

		lastSuccessTimestamp = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "flighttrack_last_success_timestamp_seconds",
				Help: "Unix time of the last successful fetch.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle increments the cycle counter for the given outcome.
func ObserveCycle(outcome string) {
	if cyclesTotal != nil {
		cyclesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveFetchFailure increments the fetch failure counter for the kind.
func ObserveFetchFailure(kind string) {
	if fetchFailuresTotal != nil {
		fetchFailuresTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveSnapshotFailure increments the snapshot write failure counter.
func ObserveSnapshotFailure() {
	if snapshotFailuresTotal != nil {
		snapshotFailuresTotal.Inc()
	}
}

// ObserveStoreFailure increments the store write failure counter.
func ObserveStoreFailure() {
	if storeFailuresTotal != nil {
		storeFailuresTotal.Inc()
	}
}

// SetLastSuccess records the time of the last successful fetch.
func SetLastSuccess(t time.Time) {
	if lastSuccessTimestamp != nil {
		lastSuccessTimestamp.Set(float64(t.Unix()))
	}
}
