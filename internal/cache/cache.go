package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps Redis for result caching and usage counters.
//
// When Redis is unreachable the cache degrades to a no-op: every read is a
// miss, every write is discarded, and quota checks admit. That trades quota
// strictness for availability under partial failure, deliberately.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at redisURL. Connection failure is not fatal: the
// returned cache is disabled and the gateway keeps serving.
func New(redisURL string, defaultTTL time.Duration) *Cache {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("Invalid Redis URL, caching disabled: %v", err)
		return &Cache{ttl: defaultTTL}
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unreachable, caching disabled: %v", err)
		client.Close()
		return &Cache{ttl: defaultTTL}
	}

	log.Printf("Redis connection established")
	return &Cache{client: client, ttl: defaultTTL}
}

// NewDisabled returns a cache that never stores anything. Used in tests and
// when no Redis URL is configured.
func NewDisabled() *Cache {
	return &Cache{}
}

func (c *Cache) Enabled() bool {
	return c.client != nil
}

func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Ping reports cache connectivity for health checks.
func (c *Cache) Ping(ctx context.Context) error {
	if c.client == nil {
		return redis.ErrClosed
	}
	return c.client.Ping(ctx).Err()
}

// GetJSON loads a cached value into v. Returns false on miss, error, or
// when the cache is disabled.
func (c *Cache) GetJSON(ctx context.Context, key string, v any) bool {
	if c.client == nil {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Cache read error for %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("Cache decode error for %s: %v", key, err)
		return false
	}
	return true
}

// SetJSON stores v under key with the given TTL (0 means the default TTL).
// Failures are logged and swallowed.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) bool {
	if c.client == nil {
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Cache encode error for %s: %v", key, err)
		return false
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Printf("Cache write error for %s: %v", key, err)
		return false
	}
	return true
}

// IncrUsage bumps the daily usage counter for an identifier/feature pair.
func (c *Cache) IncrUsage(ctx context.Context, identifier, feature string) int64 {
	if c.client == nil {
		return 0
	}
	key := usageKey(identifier, feature)
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("Usage increment error for %s: %v", key, err)
		return 0
	}
	c.client.Expire(ctx, key, 24*time.Hour)
	return n
}

// CheckQuota reports whether the identifier is under the daily limit for a
// feature. Fail-open: any error admits.
func (c *Cache) CheckQuota(ctx context.Context, identifier, feature string, limit int64) bool {
	if c.client == nil {
		return true
	}
	n, err := c.client.Get(ctx, usageKey(identifier, feature)).Int64()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Quota check error: %v", err)
		}
		return true
	}
	return n < limit
}

func usageKey(identifier, feature string) string {
	return "usage:" + identifier + ":" + feature + ":" + time.Now().UTC().Format("20060102")
}
