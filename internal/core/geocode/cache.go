// Package geocode resolves coordinates to place names for map popups.
package geocode

import (
	"strconv"
	"sync"
)

// Key renders the cache key "{lat},{lon}" using the shortest decimal
// form of each coordinate.
func Key(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}

// LocationCache maps coordinate keys to resolved place names. Entries are
// only ever added; the cache lives as long as its owner (a map session).
type LocationCache struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewLocationCache returns an empty cache.
func NewLocationCache() *LocationCache {
	return &LocationCache{names: make(map[string]string)}
}

// Get returns the name stored under key.
func (c *LocationCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[key]
	return name, ok
}

// Put stores name under key, replacing any previous entry.
func (c *LocationCache) Put(key, name string) {
	c.mu.Lock()
	c.names[key] = name
	c.mu.Unlock()
}

// Len returns the number of cached names.
func (c *LocationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Snapshot copies the current entries.
func (c *LocationCache) Snapshot() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.names))
	for k, v := range c.names {
		out[k] = v
	}
	return out
}
