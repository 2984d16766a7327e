package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxRetries int           // Retries after the first attempt (0 = single attempt)
	BaseWait   time.Duration // Initial wait duration
	MaxWait    time.Duration // Wait ceiling
	Factor     float64       // Backoff multiplier (2.0 = doubling)
	Jitter     float64       // Randomization factor (0.25 = ±25%)
}

// DefaultRetryConfig returns small bounded defaults: latency under failure
// matters more to collectors than squeezing out one more attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseWait:   500 * time.Millisecond,
		MaxWait:    5 * time.Second,
		Factor:     2.0,
		Jitter:     0.25,
	}
}

// Backoff builds the bounded exponential backoff policy for one request:
// MaxRetries extra attempts with doubling capped waits, aborted early when
// ctx is done.
func (cfg RetryConfig) Backoff(ctx context.Context) backoff.BackOff {
	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = cfg.BaseWait
	strategy.MaxInterval = cfg.MaxWait
	strategy.Multiplier = cfg.Factor
	strategy.RandomizationFactor = cfg.Jitter
	strategy.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	return backoff.WithContext(backoff.WithMaxRetries(strategy, uint64(cfg.MaxRetries)), ctx)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry runs op under the policy, returning the last error once attempts
// are exhausted or a permanent error is hit.
func (cfg RetryConfig) Retry(ctx context.Context, op func() error) error {
	return backoff.Retry(op, cfg.Backoff(ctx))
}
