package queryexpand

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ExpansionTTL is how long AI expansions stay cached; paraphrases are
// stable, so a long TTL avoids repeat provider cost.
const ExpansionTTL = 7 * 24 * time.Hour

// ExpansionCache stores AI expansion results keyed by query hash.
type ExpansionCache interface {
	Get(ctx context.Context, key string) ([]string, bool)
	Set(ctx context.Context, key string, variants []string)
}

// LocalCache is the in-process fallback used when Redis is not
// configured.
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates an in-process expansion cache.
func NewLocalCache() *LocalCache {
	return &LocalCache{cache: gocache.New(ExpansionTTL, time.Hour)}
}

func (c *LocalCache) Get(_ context.Context, key string) ([]string, bool) {
	if v, ok := c.cache.Get(key); ok {
		return v.([]string), true
	}
	return nil, false
}

func (c *LocalCache) Set(_ context.Context, key string, variants []string) {
	c.cache.Set(key, variants, gocache.DefaultExpiration)
}

// RedisCache shares expansions across server instances.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis-backed expansion cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]string, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var variants []string
	if err := json.Unmarshal(data, &variants); err != nil {
		return nil, false
	}
	return variants, true
}

func (c *RedisCache) Set(ctx context.Context, key string, variants []string) {
	data, err := json.Marshal(variants)
	if err != nil {
		return
	}
	// Best effort; a failed write only costs a future provider call.
	c.client.Set(ctx, key, data, ExpansionTTL)
}
