package telemetry

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// retryableStatuses are the response codes treated as transient.
var retryableStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// ExponentialBackoff computes jittered delays between fetch attempts.
type ExponentialBackoff struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewExponentialBackoff builds a backoff with sane defaults.
func NewExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		baseDelay: 250 * time.Millisecond,
		maxDelay:  5 * time.Second,
	}
}

// Delay returns the wait duration before the given (zero-based) retry attempt.
func (b *ExponentialBackoff) Delay(attempt int) time.Duration {
	delay := float64(b.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(b.maxDelay) {
		delay = float64(b.maxDelay)
	}
	jitter := b.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (b *ExponentialBackoff) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
