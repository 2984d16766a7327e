package testutil

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coinlens/upstream"
)

// TestUpstream is the upstream name used across tests.
const TestUpstream = "test-upstream"

// FastConfig returns a config with generous admission and near-zero retry
// waits so tests exercise orchestration, not timers. The breaker threshold
// is effectively unreachable.
func FastConfig() upstream.Config {
	cfg := upstream.DefaultConfig(TestUpstream)
	cfg.TokensPerSecond = 1000
	cfg.MaxTokens = 1000
	cfg.FailureThreshold = math.MaxUint32
	cfg.RecoveryTimeout = time.Hour
	cfg.RequestTimeout = 5 * time.Second
	cfg.MaxRetries = 0
	cfg.RetryBaseWait = time.Millisecond
	cfg.RetryMaxWait = 5 * time.Millisecond
	cfg.RetryJitter = 0
	return cfg
}

// NewFastClient creates a client from FastConfig with extra options applied.
func NewFastClient(t *testing.T, opts ...upstream.Option) *upstream.Client {
	t.Helper()

	client, err := upstream.NewFromConfig(FastConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// NewBreakerTestClient creates a client whose breaker trips after two
// consecutive failures and recovers quickly, for fast breaker tests.
func NewBreakerTestClient(t *testing.T, recovery time.Duration, opts ...upstream.Option) *upstream.Client {
	t.Helper()

	cfg := FastConfig()
	cfg.FailureThreshold = 2
	cfg.RecoveryTimeout = recovery

	client, err := upstream.NewFromConfig(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
