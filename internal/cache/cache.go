package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opensocial/backend/internal/logger"
)

// Keys and TTLs for the hot read paths. The post feed and the user
// directory are read far more often than they change; both are
// invalidated on write.
const (
	FeedKeyPrefix = "feed:page:"
	UserListKey   = "users:all"
	FeedTTL       = 30 * time.Second
	UserListTTL   = 5 * time.Minute
)

type Cache struct {
	client *redis.Client
	log    *logger.Logger
}

func New(addr string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log := logger.Default().WithComponent("cache")
	log.Info(context.Background(), "connected to redis", map[string]interface{}{
		"addr": addr,
	})
	return &Cache{client: client, log: log}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying redis client for health checks.
func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		c.log.Debug(ctx, "cache miss", map[string]interface{}{"key": key})
		return "", false
	}
	if err != nil {
		c.log.Warn(ctx, "cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return "", false
	}
	c.log.Debug(ctx, "cache hit", map[string]interface{}{"key": key})
	return val, true
}

func (c *Cache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn(ctx, "cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return err
	}
	return nil
}

// GetJSON loads and decodes a cached value into dest. A decode failure is
// treated as a miss so a stale shape never poisons the read path.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.log.Warn(ctx, "cache entry undecodable, dropping", map[string]interface{}{
			"key": key,
		})
		_ = c.client.Del(ctx, key).Err()
		return false
	}
	return true
}

// SetJSON encodes and stores a value. Failures are logged, never fatal:
// the cache is an accelerator, not a dependency.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn(ctx, "cache encode failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return
	}
	_ = c.Set(ctx, key, string(raw), ttl)
}

// Invalidate removes specific keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn(ctx, "cache invalidation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// InvalidatePrefix removes every key under prefix. Used when a write makes
// every cached feed page stale at once.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn(ctx, "cache scan failed", map[string]interface{}{
			"prefix": prefix,
			"error":  err.Error(),
		})
		return
	}
	c.Invalidate(ctx, keys...)
}
