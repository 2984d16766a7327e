package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// TokenBucket bounds the outbound call rate to one logical upstream. Tokens
// refill lazily at each acquisition as min(capacity, tokens+elapsed*rate),
// so the bucket never exceeds its burst capacity and refill is monotonic in
// elapsed wall-clock time.
//
// The bucket is safe for concurrent use; the check-and-deduct is atomic
// under its mutex. Waiters sleep on the injected clock, so they suspend the
// calling goroutine without blocking others.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	clock      clock.Clock
	name       string
}

// NewTokenBucket creates a full bucket. The clock may be a mock in tests;
// pass clock.New() in production.
func NewTokenBucket(name string, refillRate, capacity float64, clk clock.Clock) *TokenBucket {
	if clk == nil {
		clk = clock.New()
	}
	return &TokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillRate,
		lastRefill: clk.Now(),
		clock:      clk,
		name:       name,
	}
}

// Acquire blocks until cost tokens are available or ctx is done. There is no
// other failure mode: admission always eventually succeeds, so callers that
// need a hard deadline wrap ctx and treat expiry as a failed call. A cost
// above capacity is clamped to capacity, otherwise it could never be
// satisfied.
//
// Admission is approximately FIFO-fair under contention: waiters recheck on
// a timer sized to the current deficit, so an earlier waiter usually wakes
// first, but no strict ordering is guaranteed.
func (tb *TokenBucket) Acquire(ctx context.Context, cost float64) error {
	if cost > tb.capacity {
		cost = tb.capacity
	}

	for {
		tb.mu.Lock()
		tb.refill()
		if tb.tokens >= cost {
			tb.tokens -= cost
			tb.mu.Unlock()
			return nil
		}
		deficit := cost - tb.tokens
		tb.mu.Unlock()

		wait := time.Duration(deficit / tb.refillRate * float64(time.Second))
		timer := tb.clock.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire takes cost tokens without blocking. Returns true if successful.
func (tb *TokenBucket) TryAcquire(cost float64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens >= cost {
		tb.tokens -= cost
		return true
	}
	return false
}

// Tokens returns the current number of tokens after refill.
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

// Name returns the bucket's upstream name for logs.
func (tb *TokenBucket) Name() string {
	return tb.name
}

// refill must be called with tb.mu held.
func (tb *TokenBucket) refill() {
	now := tb.clock.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now
}
