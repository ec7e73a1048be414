package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"stockbot/internal/domain/model"
)

// NewsCache stores fetched headlines in redis so that multiple bot instances
// share one provider quota budget.
type NewsCache struct {
	rdb    *redis.Client
	prefix string
}

func NewNewsCache(rdb *redis.Client, prefix string) *NewsCache {
	return &NewsCache{rdb: rdb, prefix: prefix}
}

func (c *NewsCache) key(k string) string { return c.prefix + ":news:" + k }

func (c *NewsCache) Get(ctx context.Context, key string) ([]model.NewsItem, bool) {
	raw, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var items []model.NewsItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (c *NewsCache) Set(ctx context.Context, key string, items []model.NewsItem, ttl time.Duration) {
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, c.key(key), raw, ttl).Err()
}
