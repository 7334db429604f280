package client

import (
	"sync"
	"time"
)

// containerCache is a thread-safe TTL cache of domain → container id
// mappings, saving one listing round-trip per cached domain. It mirrors
// the mapping cache browsers keep on the web side of the system.
type containerCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	containerID string
	expiresAt   time.Time
}

func newContainerCache(ttl time.Duration) *containerCache {
	return &containerCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *containerCache) get(domain string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[domain]
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.containerID, true
}

func (c *containerCache) set(domain, containerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain] = cacheEntry{
		containerID: containerID,
		expiresAt:   time.Now().Add(c.ttl),
	}
}

func (c *containerCache) invalidate(domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, domain)
}
