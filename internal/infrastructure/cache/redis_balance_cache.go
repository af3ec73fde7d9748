package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	appstock "github.com/stockcore/backend/internal/application/stock"
	"github.com/stockcore/backend/internal/infrastructure/config"
)

// RedisBalanceCache implements the balance snapshot cache on Redis. Snapshots
// are stored as JSON under the key the query service builds; a missing key is
// a miss, never an error.
type RedisBalanceCache struct {
	client *redis.Client
}

// NewRedisBalanceCache connects to Redis and verifies the connection
func NewRedisBalanceCache(cfg config.RedisConfig) (*RedisBalanceCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBalanceCache{client: client}, nil
}

// NewRedisBalanceCacheWithClient creates a cache with an existing Redis client
func NewRedisBalanceCacheWithClient(client *redis.Client) *RedisBalanceCache {
	return &RedisBalanceCache{client: client}
}

// Get returns the cached snapshot, or nil, nil on a miss
func (c *RedisBalanceCache) Get(ctx context.Context, key string) (*appstock.BalanceResponse, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read balance cache: %w", err)
	}

	var resp appstock.BalanceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		// A corrupt entry behaves like a miss; the next write repairs it.
		return nil, nil
	}
	return &resp, nil
}

// Set stores the snapshot with a TTL
func (c *RedisBalanceCache) Set(ctx context.Context, key string, value *appstock.BalanceResponse, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode balance snapshot: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write balance cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot
func (c *RedisBalanceCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate balance cache: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisBalanceCache) Close() error {
	return c.client.Close()
}

// Ensure RedisBalanceCache implements BalanceCache
var _ appstock.BalanceCache = (*RedisBalanceCache)(nil)
