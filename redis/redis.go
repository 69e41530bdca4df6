package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a thin wrapper over go-redis used for versioned read caching.
// Every method is safe to call when redis is unavailable: the service then
// runs uncached.
type Cache struct {
	client *redis.Client
}

func NewCache(address string) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr: address,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		log.Println("Redis not available. Running without cache.")
		return &Cache{client: nil}
	}

	log.Println("Redis connected successfully.")
	return &Cache{client: client}
}

// NewCacheWithClient wires an existing client (used by tests).
func NewCacheWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("cache marshal failed for %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		log.Printf("cache set failed for %s: %v", key, err)
	}
}

// GetVersion reads the current data version for a key family; 0 when unset.
func (c *Cache) GetVersion(ctx context.Context, key string) int64 {
	if c == nil || c.client == nil {
		return 0
	}
	v, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		return 0
	}
	return v
}

// IncrementVersion bumps the data version so any new fetch misses stale keys.
func (c *Cache) IncrementVersion(ctx context.Context, key string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		log.Printf("cache version bump failed for %s: %v", key, err)
	}
}
