// Package validation provides a bounded cache of notification validation
// verdicts keyed by message fingerprint. Repeated identical notifications
// (clients frequently re-send cancellations) skip schema validation on the
// hot path.
package validation

import (
	"sync"
)

// DefaultMaxSize bounds the cache when no size is configured.
const DefaultMaxSize = 1024

// Verdict is a cached validation outcome.
type Verdict struct {
	// Valid reports whether the message passed schema validation.
	Valid bool

	// Reason carries the validation failure detail for invalid messages.
	Reason string
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	CurrentSize int   `json:"current_size"`
	MaxSize     int   `json:"max_size"`
	Enabled     bool  `json:"enabled"`
}

// Cache maps message fingerprints to validation verdicts. It evicts the
// oldest-inserted entry once maxSize is reached, so it never grows
// unboundedly regardless of how many distinct fingerprints are seen.
// Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[uint64]Verdict
	order   []uint64
	maxSize int
	enabled bool
	hits    int64
	misses  int64
}

// NewCache creates a cache bounded to maxSize entries. A non-positive
// maxSize falls back to DefaultMaxSize. The cache starts enabled.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache{
		entries: make(map[uint64]Verdict),
		order:   make([]uint64, 0, maxSize),
		maxSize: maxSize,
		enabled: true,
	}
}

// Enable turns cache lookups and stores on.
func (c *Cache) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = true
}

// Disable turns the cache into a pass-through: every call validates fresh
// and nothing is stored. Counters still record the misses.
func (c *Cache) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
}

// GetOrValidate returns the cached verdict for fingerprint, or runs validate
// and stores its result. When the cache is disabled, validate always runs
// and the result is not stored.
func (c *Cache) GetOrValidate(fingerprint uint64, validate func() Verdict) Verdict {
	c.mu.Lock()
	if c.enabled {
		if v, ok := c.entries[fingerprint]; ok {
			c.hits++
			c.mu.Unlock()
			return v
		}
	}
	c.misses++
	enabled := c.enabled
	c.mu.Unlock()

	// Run the validator outside the lock; it may be arbitrarily slow.
	v := validate()

	if enabled {
		c.mu.Lock()
		c.store(fingerprint, v)
		c.mu.Unlock()
	}
	return v
}

// store inserts a verdict, evicting oldest entries to stay within maxSize.
// Caller must hold c.mu.
func (c *Cache) store(fingerprint uint64, v Verdict) {
	if _, ok := c.entries[fingerprint]; ok {
		c.entries[fingerprint] = v
		return
	}
	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[fingerprint] = v
	c.order = append(c.order, fingerprint)
}

// Clear empties the cache storage. Cumulative hit/miss counters are
// preserved; use Reset to zero them as well.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]Verdict)
	c.order = c.order[:0]
}

// Reset empties the cache storage and zeroes the hit/miss counters.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]Verdict)
	c.order = c.order[:0]
	c.hits = 0
	c.misses = 0
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		CurrentSize: len(c.entries),
		MaxSize:     c.maxSize,
		Enabled:     c.enabled,
	}
}
