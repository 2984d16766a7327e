// Package respcache is the in-memory TTL response cache behind the upstream
// client. Entries are never evicted: an expired entry stays available as a
// stale fallback until the next successful fetch overwrites it, which is
// what lets collectors keep serving last-known-good data through outages.
package respcache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Freshness describes the state of a cache lookup.
type Freshness int

const (
	// Missing means the key was never populated.
	Missing Freshness = iota
	// Fresh means the entry is within its TTL.
	Fresh
	// Stale means the entry's TTL has expired but the value is retained.
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "missing"
	}
}

type entry struct {
	value     json.RawMessage
	fetchedAt time.Time
	ttl       time.Duration
}

// Cache is a key→payload store with per-entry TTL. Staleness is computed
// lazily on read; there is no background eviction goroutine, so a plain
// RWMutex over the map is all the synchronization it needs.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	clock   clock.Clock
}

// New creates an empty cache. Pass clock.New() in production, a mock in tests.
func New(clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.New()
	}
	return &Cache{
		entries: make(map[string]entry),
		clock:   clk,
	}
}

// Get returns the stored value and its freshness. The value is returned for
// both Fresh and Stale; callers decide whether a stale payload is acceptable.
func (c *Cache) Get(key string) (json.RawMessage, Freshness) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, Missing
	}
	if c.clock.Now().Sub(e.fetchedAt) < e.ttl {
		return e.value, Fresh
	}
	return e.value, Stale
}

// Put stores value under key, unconditionally overwriting any previous
// entry. Only the request pipeline writes, so last-write-wins is safe.
func (c *Cache) Put(key string, value json.RawMessage, ttl time.Duration) {
	now := c.clock.Now()
	c.mu.Lock()
	c.entries[key] = entry{value: value, fetchedAt: now, ttl: ttl}
	c.mu.Unlock()
}

// Len returns the number of stored entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
