package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// CachedPrice is the last spot price successfully read from the live feed.
type CachedPrice struct {
	Price     decimal.Decimal `json:"price"`
	FetchedAt time.Time       `json:"fetched_at"`
}

type Cache interface {
	Get(ctx context.Context, asset string) (CachedPrice, bool, error)
	Set(ctx context.Context, asset string, p CachedPrice) error
}

type MemoryCache struct {
	mu     sync.RWMutex
	prices map[string]CachedPrice
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{prices: make(map[string]CachedPrice)}
}

func (c *MemoryCache) Get(_ context.Context, asset string) (CachedPrice, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[asset]
	return p, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, asset string, p CachedPrice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[asset] = p
	return nil
}

// RedisCache shares the last known price across service replicas.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func redisKey(asset string) string {
	return "spot-price:" + asset
}

func (c *RedisCache) Get(ctx context.Context, asset string) (CachedPrice, bool, error) {
	raw, err := c.rdb.Get(ctx, redisKey(asset)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CachedPrice{}, false, nil
		}
		return CachedPrice{}, false, err
	}

	var p CachedPrice
	if err := json.Unmarshal(raw, &p); err != nil {
		return CachedPrice{}, false, err
	}
	return p, true, nil
}

func (c *RedisCache) Set(ctx context.Context, asset string, p CachedPrice) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, redisKey(asset), raw, c.ttl).Err()
}
