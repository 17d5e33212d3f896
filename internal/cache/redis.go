package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a thin JSON layer over redis. A nil *Cache is valid and behaves
// as an always-miss cache, so callers degrade gracefully when redis is not
// configured.
type Cache struct {
	client *redis.Client
}

// New connects to redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Cache{client: client}, nil
}

// GetJSON gets the key and unmarshals into dest. Returns (true, nil) if
// found, (false, nil) on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil {
		return false, nil
	}
	s, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetNXJSON marshals v and sets the key only if it does not exist yet.
// Returns true if this call won the write. Used to converge concurrent
// daily recomputes on a single snapshot.
func (c *Cache) SetNXJSON(ctx context.Context, key string, v any, ttl time.Duration) (bool, error) {
	if c == nil {
		return true, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	return c.client.SetNX(ctx, key, b, ttl).Result()
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
