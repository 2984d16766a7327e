package upstream

import (
	"errors"
	"fmt"
)

// Sentinel errors - use with errors.Is()
var (
	ErrCircuitOpen      = errors.New("upstream: circuit breaker open")
	ErrResponseTooLarge = errors.New("upstream: response too large")
	ErrRateLimitWait    = errors.New("upstream: rate limit wait aborted")
	ErrInvalidConfig    = errors.New("upstream: invalid configuration")
)

// FailureKind classifies why a call failed. Every kind is handled the same
// way by callers (nil or stale fallback); the kind exists for logging and for
// the retry policy.
type FailureKind int

const (
	// KindNetwork covers connect failures, timeouts, and cancelled calls.
	KindNetwork FailureKind = iota
	// KindHTTPStatus is a non-2xx response from the upstream.
	KindHTTPStatus
	// KindParse is a 2xx response whose body is not valid JSON.
	KindParse
	// KindCircuitOpen means the breaker rejected the call before any
	// network attempt.
	KindCircuitOpen
	// KindAdmission means the caller's context expired while waiting for
	// rate-limit admission; no network attempt was made.
	KindAdmission
	// KindBadRequest means the request could not be constructed (malformed
	// URL); no network attempt was made and retrying cannot help.
	KindBadRequest
)

func (k FailureKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTPStatus:
		return "http_status"
	case KindParse:
		return "parse"
	case KindCircuitOpen:
		return "circuit_open"
	case KindAdmission:
		return "admission"
	case KindBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// CallError is the failure type produced by the request pipeline.
// Use errors.As() to extract details, errors.Is() to match sentinels.
type CallError struct {
	Upstream string
	Kind     FailureKind
	Status   int // HTTP status code, 0 unless Kind == KindHTTPStatus
	cause    error
}

func (e *CallError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream: %s call failed: %s (status=%d): %v",
			e.Upstream, e.Kind, e.Status, e.cause)
	}
	return fmt.Sprintf("upstream: %s call failed: %s: %v", e.Upstream, e.Kind, e.cause)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CallError) Unwrap() error { return e.cause }

// IsRetryable reports whether a retry may succeed. Rate-limit responses and
// server errors are transient; other statuses and parse failures are
// deterministic and retrying cannot change them.
func (e *CallError) IsRetryable() bool {
	switch e.Kind {
	case KindNetwork:
		return true
	case KindHTTPStatus:
		return e.Status == 429 || (e.Status >= 500 && e.Status <= 504)
	default:
		return false
	}
}

func newCallError(name string, kind FailureKind, status int, cause error) *CallError {
	return &CallError{Upstream: name, Kind: kind, Status: status, cause: cause}
}
