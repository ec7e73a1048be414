package news

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stockbot/internal/domain/model"
)

// ErrQuotaExhausted is returned when every configured provider has spent its
// budget for the current window.
var ErrQuotaExhausted = errors.New("news: no provider available with remaining quota")

// Provider fetches up to limit headlines for a ticker.
type Provider func(ctx context.Context, ticker string, limit int) ([]model.NewsItem, error)

// Cache is the shared headline cache consulted before any provider call.
// A cache hit never spends quota.
type Cache interface {
	Get(ctx context.Context, key string) ([]model.NewsItem, bool)
	Set(ctx context.Context, key string, items []model.NewsItem, ttl time.Duration)
}

// Router tries providers in a fixed priority order, skipping any whose quota
// for the window is spent. Each router instance carries its own budget, so
// interactive calls and background jobs can be throttled independently.
type Router struct {
	ordering  []string
	providers map[string]Provider
	ttl       time.Duration
	cache     Cache

	mu     sync.Mutex
	quotas map[string]int
}

func NewRouter(providers map[string]Provider, quotas map[string]int, ttl time.Duration, cache Cache) *Router {
	q := make(map[string]int, len(quotas))
	for name, n := range quotas {
		q[name] = n
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Router{
		ordering:  []string{"gdelt", "newsdata", "gnews", "guardian"},
		providers: providers,
		ttl:       ttl,
		cache:     cache,
		quotas:    q,
	}
}

// Fetch returns cached headlines when fresh, otherwise walks the provider
// ordering until one with remaining quota answers.
func (r *Router) Fetch(ctx context.Context, cacheKey, ticker string, limit int) ([]model.NewsItem, error) {
	if items, ok := r.cache.Get(ctx, cacheKey); ok {
		return items, nil
	}

	for _, name := range r.ordering {
		provider, ok := r.providers[name]
		if !ok {
			continue
		}
		if !r.spendQuota(name) {
			continue
		}
		items, err := provider(ctx, ticker, limit)
		if err != nil {
			return nil, fmt.Errorf("news: provider %s: %w", name, err)
		}
		r.cache.Set(ctx, cacheKey, items, r.ttl)
		return items, nil
	}
	return nil, ErrQuotaExhausted
}

func (r *Router) spendQuota(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quotas[name] <= 0 {
		return false
	}
	r.quotas[name]--
	return true
}
