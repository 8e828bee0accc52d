// Package store defines the durable persistence layer for fetched telemetry.
// The Store interface decouples the collector from a specific backend,
// allowing a per-flight SQLite file in the default setup and a central
// Postgres database when one is reachable.
package store

import (
	"context"
	"time"

	"flighttrack/internal/telemetry"
)

// Record is one normalized row appended per successful fetch.
type Record struct {
	// RunID identifies the process run that captured the payload, letting
	// multiple scrape sessions of the same flight be told apart.
	RunID string

	// CapturedAt is the fetch completion time, second resolution.
	CapturedAt time.Time

	// Payload is the document as returned by the endpoint.
	Payload telemetry.Payload
}

// Store is the write contract the collector depends on. Implementations are
// only ever written from one cycle at a time; they need no internal locking
// beyond what their driver requires.
type Store interface {
	// WriteRecord appends one record without touching prior records.
	WriteRecord(ctx context.Context, rec Record) error

	// Close releases the underlying handle. Called exactly once, on shutdown.
	Close() error
}

// NoOp is a Store that discards every record. Useful for dry runs and tests.
type NoOp struct{}

// WriteRecord for NoOp does nothing.
func (NoOp) WriteRecord(context.Context, Record) error { return nil }

// Close for NoOp does nothing.
func (NoOp) Close() error { return nil }
