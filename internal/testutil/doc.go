// Package testutil provides test helpers for the upstream client: a mock
// JSON API server with request capture, canned replies, and pre-tuned client
// constructors for breaker and retry tests.
package testutil
