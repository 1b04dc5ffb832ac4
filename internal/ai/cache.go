package ai

import (
	"sync"
	"time"
)

const (
	cacheMaxEntries = 100
	cacheTTL        = time.Hour
)

type cacheEntry struct {
	text    string
	addedAt time.Time
}

// responseCache is a capped, TTL-bounded response cache keyed by
// provider:prompt. Overflow evicts the oldest entry by insertion order.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string
	max     int
	ttl     time.Duration
	now     func() time.Time
}

func newResponseCache() *responseCache {
	return &responseCache{
		entries: make(map[string]cacheEntry),
		max:     cacheMaxEntries,
		ttl:     cacheTTL,
		now:     time.Now,
	}
}

func cacheKey(provider, prompt string) string {
	return provider + ":" + prompt
}

func (c *responseCache) get(provider, prompt string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cacheKey(provider, prompt)]
	if !ok {
		return "", false
	}
	if c.now().Sub(e.addedAt) > c.ttl {
		return "", false
	}
	return e.text, true
}

func (c *responseCache) put(provider, prompt, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(provider, prompt)
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{text: text, addedAt: c.now()}

	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *responseCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.order = nil
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
