package episode

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
)

// Cache memoizes raw backend responses keyed by a hash of the exact prompt.
// A nil *Cache is valid and caches nothing.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// Key returns the cache key for prompt.
func Key(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for prompt.
func (c *Cache) Get(prompt string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.RLock()
	resp, ok := c.entries[Key(prompt)]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return resp, ok
}

// Set stores the response for prompt.
func (c *Cache) Set(prompt, response string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries[Key(prompt)] = response
	c.mu.Unlock()
}

// Invalidate drops the response for prompt.
func (c *Cache) Invalidate(prompt string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, Key(prompt))
	c.mu.Unlock()
}

// Clear drops every response.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Len returns the number of cached responses.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the lookup hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}
