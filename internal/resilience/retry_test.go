package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries: maxRetries,
		BaseWait:   time.Millisecond,
		MaxWait:    5 * time.Millisecond,
		Factor:     2.0,
		Jitter:     0,
	}
}

func TestRetry_SucceedsWithinBudget(t *testing.T) {
	attempts := 0
	err := fastRetryConfig(2).Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	attempts := 0
	boom := errors.New("still down")
	err := fastRetryConfig(2).Retry(context.Background(), func() error {
		attempts++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts) // first attempt + 2 retries
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	attempts := 0
	fatal := errors.New("bad request")
	err := fastRetryConfig(5).Retry(context.Background(), func() error {
		attempts++
		return Permanent(fatal)
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ContextCancelAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := fastRetryConfig(100).Retry(ctx, func() error {
		attempts++
		cancel()
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 2)
}
