package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32        // Consecutive failures before opening
	RecoveryTimeout  time.Duration // Open duration before a half-open trial
	OnStateChange    func(name string, from, to string)
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// Breaker is a per-upstream failure-tripped gate with a two-step contract:
// Allow asks whether a request may proceed, and the returned done callback
// records the outcome once the call completes. The two steps share one
// authoritative state inside gobreaker, so an outcome recorded against a
// state generation that has since rotated is discarded rather than applied
// to the wrong window.
//
// The breaker admits exactly one trial request while half-open; concurrent
// callers during the trial are rejected the same way as while open.
type Breaker struct {
	cb *gobreaker.TwoStepCircuitBreaker[any]
}

// NewBreaker creates a circuit breaker with the given configuration.
//
// Every recorded failure counts, whatever its kind: network errors, non-2xx
// statuses, parse failures, and cancelled calls all move the breaker the
// same way. Counts never reset while closed except on success (Interval 0),
// so the trip condition is strictly "FailureThreshold consecutive failures".
func NewBreaker(cfg BreakerConfig) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1, // single half-open trial
		Interval:    0,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}

	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from.String(), to.String())
		}
	}

	return &Breaker{cb: gobreaker.NewTwoStepCircuitBreaker[any](settings)}
}

// Allow reports whether a request may proceed now. On admission it returns a
// non-nil done callback that the caller must invoke exactly once with the
// call's outcome; a rejected request returns a nil callback and a non-nil
// error. Rejection while a half-open trial is in flight reports
// gobreaker.ErrTooManyRequests, otherwise gobreaker.ErrOpenState.
func (b *Breaker) Allow() (done func(success bool), err error) {
	return b.cb.Allow()
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Counts returns the current request/failure counts.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}

// IsOpen returns true if the breaker is rejecting all requests.
func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}
