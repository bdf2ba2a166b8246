// Package roots maintains the garbage collector's root set: every asset
// hash referenced by a currently deployed stack template. The cache is the
// only state shared between the sweep loop and the background refresher;
// every update replaces the whole set atomically, so readers never observe
// a partially built root set.
package roots

import (
	"sync"
	"time"
)

// Cache is a replaceable set of asset hashes.
type Cache struct {
	mu          sync.RWMutex
	hashes      map[string]struct{}
	refreshedAt time.Time
}

// NewCache creates an empty cache. A cache with no successful refresh
// reports a zero RefreshedAt and contains nothing.
func NewCache() *Cache {
	return &Cache{hashes: make(map[string]struct{})}
}

// Replace swaps in a new root set and stamps the refresh time.
func (c *Cache) Replace(hashes map[string]struct{}, at time.Time) {
	if hashes == nil {
		hashes = make(map[string]struct{})
	}
	c.mu.Lock()
	c.hashes = hashes
	c.refreshedAt = at
	c.mu.Unlock()
}

// Contains reports whether the hash is referenced by a deployed template.
func (c *Cache) Contains(hash string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.hashes[hash]
	return ok
}

// Size returns the number of hashes in the root set.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hashes)
}

// RefreshedAt returns the time of the last successful refresh.
func (c *Cache) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}
