package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sikaguard/sikaguard/internal/domain"
)

// redisKeyPrefix namespaces every key so SikaGuard can share a Redis
// instance with other services.
const redisKeyPrefix = "sikaguard:"

// incrScript bumps a counter and arms its expiry only on first
// increment, so the window is anchored to the first event.
var incrScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return current
`)

// RedisCache backs the Pro tier cache and the L2 half of
// TwoPhaseCache with a shared Redis instance.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection before
// returning.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a value. A missing key returns nil with no error.
func (c *RedisCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	val, err := c.client.Get(ctx, c.redisKey(tenantID, key)).Bytes()
	switch {
	case err == redis.Nil:
		return nil, nil
	case err != nil:
		return nil, err
	}
	return val, nil
}

// Set stores a value with a TTL.
func (c *RedisCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	return c.client.Set(ctx, c.redisKey(tenantID, key), value, ttl).Err()
}

// Delete removes a value.
func (c *RedisCache) Delete(ctx context.Context, tenantID string, key string) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	return c.client.Del(ctx, c.redisKey(tenantID, key)).Err()
}

// GetProfile retrieves a cached behavior profile, nil on miss.
func (c *RedisCache) GetProfile(ctx context.Context, tenantID string, userID string) (*domain.BehaviorProfile, error) {
	data, err := c.Get(ctx, tenantID, "profile:"+userID)
	if err != nil || data == nil {
		return nil, err
	}

	var profile domain.BehaviorProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetProfile caches a behavior profile.
func (c *RedisCache) SetProfile(ctx context.Context, tenantID string, userID string, profile *domain.BehaviorProfile, ttl time.Duration) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.Set(ctx, tenantID, "profile:"+userID, data, ttl)
}

// IncrementCounter bumps a fixed-window counter atomically. The
// increment and the expiry are applied in one Lua script so concurrent
// callers across instances agree on the window.
func (c *RedisCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	k := c.redisKey(tenantID, "counter:"+key)
	return incrScript.Run(ctx, c.client, []string{k}, window.Milliseconds()).Int64()
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) redisKey(tenantID, key string) string {
	return redisKeyPrefix + tenantID + ":" + key
}
