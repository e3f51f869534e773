package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/sikaguard/sikaguard/internal/domain"
)

// New builds the cache the deployment tier calls for: plain LRU for
// Community, Redis for Pro, or a two-phase LRU-over-Redis when
// EnableTwoPhase is set.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil
	case "redis":
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(cfg)
		}
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// TwoPhaseCache layers a process-local LRU (L1) over Redis (L2).
// Reads fall through L1 to L2 and backfill L1 on a hit; writes go to
// both, with the L1 copy held no longer than l1TTL so stale local
// entries age out quickly on multi-node deployments.
type TwoPhaseCache struct {
	local  *LRUCache
	remote *RedisCache
	l1TTL  time.Duration
}

// NewTwoPhaseCache creates a two-phase cache with LRU + Redis.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	remote, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}

	l1TTL := cfg.LocalTTL
	if l1TTL == 0 {
		l1TTL = 5 * time.Minute
	}

	return &TwoPhaseCache{
		local:  NewLRUCache(cfg.LocalMaxSize),
		remote: remote,
		l1TTL:  l1TTL,
	}, nil
}

// localTTL caps the L1 lifetime at both l1TTL and the caller's TTL, so
// L1 never outlives the authoritative L2 entry.
func (c *TwoPhaseCache) localTTL(ttl time.Duration) time.Duration {
	if ttl < c.l1TTL {
		return ttl
	}
	return c.l1TTL
}

// Get reads through L1 to L2, backfilling L1 on an L2 hit.
func (c *TwoPhaseCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	if val, err := c.local.Get(ctx, tenantID, key); err != nil || val != nil {
		return val, err
	}

	val, err := c.remote.Get(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		_ = c.local.Set(ctx, tenantID, key, val, c.l1TTL)
	}
	return val, nil
}

// Set writes to both layers.
func (c *TwoPhaseCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, tenantID, key, value, c.localTTL(ttl)); err != nil {
		return err
	}
	return c.remote.Set(ctx, tenantID, key, value, ttl)
}

// Delete removes from both layers.
func (c *TwoPhaseCache) Delete(ctx context.Context, tenantID string, key string) error {
	if err := c.local.Delete(ctx, tenantID, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, tenantID, key)
}

// GetProfile reads a behavior profile through L1 to L2.
func (c *TwoPhaseCache) GetProfile(ctx context.Context, tenantID string, userID string) (*domain.BehaviorProfile, error) {
	if profile, err := c.local.GetProfile(ctx, tenantID, userID); err != nil || profile != nil {
		return profile, err
	}

	profile, err := c.remote.GetProfile(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		_ = c.local.SetProfile(ctx, tenantID, userID, profile, c.l1TTL)
	}
	return profile, nil
}

// SetProfile caches a behavior profile in both layers.
func (c *TwoPhaseCache) SetProfile(ctx context.Context, tenantID string, userID string, profile *domain.BehaviorProfile, ttl time.Duration) error {
	if err := c.local.SetProfile(ctx, tenantID, userID, profile, c.localTTL(ttl)); err != nil {
		return err
	}
	return c.remote.SetProfile(ctx, tenantID, userID, profile, ttl)
}

// IncrementCounter goes straight to Redis. Counters must agree across
// nodes, so L1 is bypassed.
func (c *TwoPhaseCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	return c.remote.IncrementCounter(ctx, tenantID, key, window)
}

// Ping checks both layers.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.local.Ping(ctx); err != nil {
		return fmt.Errorf("L1 ping failed: %w", err)
	}
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("L2 ping failed: %w", err)
	}
	return nil
}

// Close releases both layers.
func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

// Stats reports the L1 entry count and capacity.
func (c *TwoPhaseCache) Stats() (size int, capacity int) {
	return c.local.Stats()
}
