package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_StartsFull(t *testing.T) {
	mockClock := clock.NewMock()
	tb := NewTokenBucket("test", 10, 5, mockClock)

	assert.InDelta(t, 5.0, tb.Tokens(), 0.0001)
}

func TestTokenBucket_RefillClampedAtCapacity(t *testing.T) {
	mockClock := clock.NewMock()
	tb := NewTokenBucket("test", 10, 5, mockClock)

	require.True(t, tb.TryAcquire(5))
	assert.InDelta(t, 0.0, tb.Tokens(), 0.0001)

	// 10 seconds at 10 tokens/s would be 100 tokens; cap wins.
	mockClock.Add(10 * time.Second)
	assert.InDelta(t, 5.0, tb.Tokens(), 0.0001)
}

func TestTokenBucket_RefillMatchesElapsed(t *testing.T) {
	mockClock := clock.NewMock()
	tb := NewTokenBucket("test", 10, 5, mockClock)

	require.True(t, tb.TryAcquire(5))

	mockClock.Add(300 * time.Millisecond)
	assert.InDelta(t, 3.0, tb.Tokens(), 0.0001)
}

func TestTokenBucket_TryAcquireInsufficientTokens(t *testing.T) {
	mockClock := clock.NewMock()
	tb := NewTokenBucket("test", 1, 2, mockClock)

	require.True(t, tb.TryAcquire(2))
	assert.False(t, tb.TryAcquire(1))

	// Failed attempts must not deduct anything.
	assert.InDelta(t, 0.0, tb.Tokens(), 0.0001)
}

func TestTokenBucket_AcquireBlocksUntilRefill(t *testing.T) {
	mockClock := clock.NewMock()
	tb := NewTokenBucket("test", 10, 1, mockClock)

	require.True(t, tb.TryAcquire(1))

	acquired := make(chan error, 1)
	go func() {
		acquired <- tb.Acquire(context.Background(), 1)
	}()

	// Let the goroutine reach its timer before advancing the clock.
	time.Sleep(50 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("acquire should block while the bucket is empty")
	default:
	}

	mockClock.Add(200 * time.Millisecond)

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("acquire did not complete after refill")
	}
}

func TestTokenBucket_AcquireContextCanceled(t *testing.T) {
	mockClock := clock.NewMock()
	tb := NewTokenBucket("test", 1, 1, mockClock)

	require.True(t, tb.TryAcquire(1))

	ctx, cancel := context.WithCancel(context.Background())
	acquired := make(chan error, 1)
	go func() {
		acquired <- tb.Acquire(ctx, 1)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-acquired:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("acquire did not observe cancellation")
	}
}

func TestTokenBucket_CostAboveCapacityClamped(t *testing.T) {
	mockClock := clock.NewMock()
	tb := NewTokenBucket("test", 1, 2, mockClock)

	// Without clamping this could never be satisfied.
	err := tb.Acquire(context.Background(), 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, tb.Tokens(), 0.0001)
}

func TestTokenBucket_ConcurrentTakesNeverOverdraw(t *testing.T) {
	// Negligible refill rate: the only tokens available are the initial burst.
	tb := NewTokenBucket("test", 0.000001, 10, clock.New())

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for loopIdx := 0; loopIdx < 50; loopIdx++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tb.TryAcquire(1) {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted)
	assert.GreaterOrEqual(t, tb.Tokens(), 0.0)
}
