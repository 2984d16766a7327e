// Package upstream provides a resilient outbound HTTP client shared by the
// coinlens data collectors (exchange price fetchers, DEX liquidity monitors,
// withdrawal-status trackers, metadata collectors).
//
// The third-party APIs these collectors call are rate-limited, intermittently
// unreliable, and not under our control. Every request therefore runs through
// the same pipeline: cache lookup, token-bucket admission, circuit-breaker
// admission, HTTP call with bounded retry, then cache/breaker state update.
//
// # Quick Start
//
//	client, err := upstream.New("dexscreener",
//	    upstream.WithRateLimit(5, 10),
//	    upstream.WithBreaker(5, 60*time.Second),
//	    upstream.WithDefaultTTL(30*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	body := client.Get(ctx, "https://api.dexscreener.com/latest/dex/pairs/solana/"+pair)
//	if body == nil {
//	    // upstream unavailable and no cached copy — degrade, never crash
//	    return
//	}
//
// Construct one Client per logical upstream at application start and pass the
// same instance into every collector that talks to that upstream. The rate
// limiter, breaker, and cache inside a Client are its only shared mutable
// state; sharing a Client across goroutines is safe and intended.
//
// # Degradation Contract
//
// Get never returns an error and never panics. On failure it returns the last
// cached payload even if expired, or nil when nothing was ever cached, and
// logs exactly one warning with the upstream name and failure kind. While the
// breaker is open no network attempt is made, so log volume drops during
// sustained outages instead of spiking.
//
// # Features
//
//   - Circuit breaker with sony/gobreaker
//   - Token-bucket rate limiting with optional process-wide egress limiter
//   - Retry with exponential backoff and jitter (cenkalti/backoff)
//   - TTL response cache with stale-fallback on upstream failure
//   - Environment-backed API key resolution with legacy-alias fallback
//   - API key auto-redaction in logs and errors
//   - TLS 1.2+ enforcement
//   - Structured logging with slog
package upstream
