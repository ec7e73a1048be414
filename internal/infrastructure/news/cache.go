package news

import (
	"context"
	"sync"
	"time"

	"stockbot/internal/domain/model"
)

type cacheEntry struct {
	items   []model.NewsItem
	expires time.Time
}

// MemoryCache is the in-process default when no redis cache is configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]model.NewsItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.items, true
}

func (c *MemoryCache) Set(ctx context.Context, key string, items []model.NewsItem, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{items: items, expires: time.Now().Add(ttl)}
}

var _ Cache = (*MemoryCache)(nil)
