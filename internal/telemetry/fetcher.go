// Package telemetry fetches status documents from the in-flight API.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const maxResponseBodySize = 1 << 20 // 1MB

// Payload is one decoded status document. The upstream API's shape differs
// between aircraft, so no fixed schema is assumed.
type Payload map[string]any

// ErrorKind classifies fetch failures.
type ErrorKind int

const (
	// Transient failures are expected to resolve on a later attempt or tick.
	Transient ErrorKind = iota
	// Terminal failures will not resolve by retrying within the same cycle.
	Terminal
	// Malformed means the endpoint answered 2xx with an unparseable body.
	Malformed
)

// String returns the kind's log-friendly name.
func (k ErrorKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Terminal:
		return "terminal"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// FetchError describes a failed fetch cycle.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int
	Attempts   int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch failed (%s, status %d, %d attempts): %v", e.Kind, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch failed (%s, %d attempts): %v", e.Kind, e.Attempts, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *FetchError) Unwrap() error { return e.Err }

// Config holds the immutable fetch parameters, validated once at startup.
type Config struct {
	Endpoint   string
	Headers    map[string]string
	Timeout    time.Duration
	MaxRetries int
}

// Fetcher performs resilient GETs against the status endpoint.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	backoff *ExponentialBackoff
	logger  *zap.Logger
}

// NewFetcher builds a Fetcher. The underlying client carries no global
// timeout; each attempt is bounded by a per-request context deadline.
func NewFetcher(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		backoff: NewExponentialBackoff(),
		logger:  logger,
	}
}

// Fetch issues one resilient GET, retrying transient failures up to
// MaxRetries times with jittered exponential backoff. A constantly-failing
// transient endpoint therefore sees exactly MaxRetries+1 attempts.
func (f *Fetcher) Fetch(ctx context.Context) (Payload, error) {
	var lastErr *FetchError
	maxAttempts := f.cfg.MaxRetries + 1

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := f.backoff.Delay(attempt - 1)
			f.logger.Debug("retrying fetch",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", delay),
			)
			select {
			case <-ctx.Done():
				lastErr.Attempts = attempt
				return nil, lastErr
			case <-time.After(delay):
			}
		}

		payload, ferr := f.fetchOnce(ctx)
		if ferr == nil {
			return payload, nil
		}
		ferr.Attempts = attempt + 1
		lastErr = ferr
		if ferr.Kind != Transient {
			return nil, ferr
		}
		f.logger.Debug("transient fetch failure",
			zap.Int("attempt", attempt+1),
			zap.Int("status", ferr.StatusCode),
			zap.Error(ferr.Err),
		)
	}
	return nil, lastErr
}

// fetchOnce performs a single attempt bounded by the configured timeout.
func (f *Fetcher) fetchOnce(ctx context.Context) (Payload, *FetchError) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, f.cfg.Endpoint, nil)
	if err != nil {
		return nil, &FetchError{Kind: Terminal, Err: fmt.Errorf("build request: %w", err)}
	}
	for key, value := range f.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, &FetchError{Kind: Terminal, Err: err}
		}
		// Connection refused, DNS failure, timeout: all worth retrying.
		return nil, &FetchError{Kind: Transient, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, &FetchError{Kind: Transient, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := Terminal
		if retryableStatuses[resp.StatusCode] {
			kind = Transient
		}
		return nil, &FetchError{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchError{Kind: Malformed, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	return payload, nil
}

// Close releases idle connections held by the fetcher's client.
func (f *Fetcher) Close() {
	if t, ok := f.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}
