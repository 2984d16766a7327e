package testutil

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Capture represents a captured HTTP request with timestamp.
type Capture struct {
	Method    string
	Path      string
	Query     map[string][]string
	Headers   http.Header
	Body      []byte
	Timestamp time.Time
}

// AssertPath verifies the request path.
func (c *Capture) AssertPath(t *testing.T, expected string) {
	t.Helper()
	assert.Equal(t, expected, c.Path, "unexpected path")
}

// AssertHeader verifies a specific header value.
func (c *Capture) AssertHeader(t *testing.T, key, expected string) {
	t.Helper()
	assert.Equal(t, expected, c.Headers.Get(key), "unexpected header: "+key)
}

// AssertQuery verifies a query parameter value.
func (c *Capture) AssertQuery(t *testing.T, key, expected string) {
	t.Helper()
	values := c.Query[key]
	if len(values) == 0 {
		t.Errorf("query parameter %q not found", key)
		return
	}
	assert.Equal(t, expected, values[0], "unexpected query parameter: "+key)
}

// HasQuery checks if a query parameter exists.
func (c *Capture) HasQuery(key string) bool {
	_, exists := c.Query[key]
	return exists
}

// BodyMap returns the body as a map.
func (c *Capture) BodyMap(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(c.Body, &m), "failed to decode JSON body")
	return m
}
