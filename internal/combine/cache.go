package combine

import (
	"sync"

	"github.com/chrissnell/welltie/internal/series"
)

// Key identifies the inputs of a Combine call
type Key struct {
	Version   uint64
	Offset    float64
	Tolerance float64
}

// Cache memoizes the most recent combined dataset. Rows handed out by the
// cache are shared and must not be modified by callers.
type Cache struct {
	mu    sync.Mutex
	key   Key
	rows  []Row
	valid bool
	hits  uint64
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the combined rows for the snapshot at the given offset,
// recomputing only when the inputs differ from the previous call.
func (c *Cache) Get(snap series.Snapshot, offset, tolerance float64) []Row {
	key := Key{Version: snap.Version, Offset: offset, Tolerance: tolerance}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.key == key {
		c.hits++
		return c.rows
	}

	c.rows = Combine(snap.Reference.Samples, snap.Comparison.Samples, snap.Overlays, offset, tolerance)
	c.key = key
	c.valid = true
	return c.rows
}

// Key returns the key of the cached rows and whether the cache holds any
func (c *Cache) Key() (Key, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key, c.valid
}

// Hits returns how many Get calls were served from the cache
func (c *Cache) Hits() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Invalidate drops the cached rows
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.rows = nil
}
