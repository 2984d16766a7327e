// Package resilience provides the circuit breaker, token-bucket rate limiter,
// and retry policy backing the upstream client.
// Uses sony/gobreaker for circuit breaking and cenkalti/backoff for retries.
package resilience
