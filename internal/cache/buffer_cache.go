package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/config"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/redis/go-redis/v9"
)

const bufferKeyPrefix = "ddmrp:buffer:"

// BufferCache holds buffer profiles by item. A miss is (nil, false, nil).
type BufferCache interface {
	GetBuffer(ctx context.Context, itemID string) (*domain.BufferProfile, bool, error)
	SetBuffer(ctx context.Context, profile domain.BufferProfile) error
	InvalidateBuffer(ctx context.Context, itemID string) error
	InvalidateAll(ctx context.Context) error
}

type redisBufferCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopBufferCache struct{}

// NewBufferCache returns a redis-backed cache when caching is enabled and a
// noop cache otherwise.
func NewBufferCache(ctx context.Context, cfg config.CacheConfig) (BufferCache, error) {
	if !cfg.Enabled {
		return NewNoopBufferCache(), nil
	}
	client, ttl, err := newRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisBufferCache(client, ttl), nil
}

func NewRedisBufferCache(client *redis.Client, ttl time.Duration) BufferCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisBufferCache{client: client, ttl: ttl}
}

func NewNoopBufferCache() BufferCache {
	return noopBufferCache{}
}

func bufferKey(itemID string) string {
	return bufferKeyPrefix + itemID
}

func (c *redisBufferCache) GetBuffer(ctx context.Context, itemID string) (*domain.BufferProfile, bool, error) {
	payload, err := c.client.Get(ctx, bufferKey(itemID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var profile domain.BufferProfile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return nil, false, fmt.Errorf("decode buffer cache: %w", err)
	}
	return &profile, true, nil
}

func (c *redisBufferCache) SetBuffer(ctx context.Context, profile domain.BufferProfile) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode buffer cache: %w", err)
	}
	if err := c.client.Set(ctx, bufferKey(profile.ItemID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisBufferCache) InvalidateBuffer(ctx context.Context, itemID string) error {
	return c.client.Del(ctx, bufferKey(itemID)).Err()
}

func (c *redisBufferCache) InvalidateAll(ctx context.Context) error {
	return deleteByPrefix(ctx, c.client, bufferKeyPrefix)
}

func (noopBufferCache) GetBuffer(context.Context, string) (*domain.BufferProfile, bool, error) {
	return nil, false, nil
}

func (noopBufferCache) SetBuffer(context.Context, domain.BufferProfile) error { return nil }

func (noopBufferCache) InvalidateBuffer(context.Context, string) error { return nil }

func (noopBufferCache) InvalidateAll(context.Context) error { return nil }
