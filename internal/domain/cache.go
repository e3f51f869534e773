package domain

import (
	"context"
	"time"
)

// Cache stores hot read-path data: cached behavior profiles and the
// fixed-window counters behind analyze metering. Community deployments
// back it with an in-process LRU; Pro uses Redis, optionally fronted
// by a local L1. All keys are tenant-scoped.
type Cache interface {
	// Get retrieves a value. A miss returns nil, nil.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value with a TTL.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetProfile retrieves a cached behavior profile, nil on miss.
	GetProfile(ctx context.Context, tenantID string, userID string) (*BehaviorProfile, error)

	// SetProfile caches a behavior profile for the scoring pipeline.
	SetProfile(ctx context.Context, tenantID string, userID string, profile *BehaviorProfile, ttl time.Duration) error

	// IncrementCounter atomically bumps a fixed-window counter and
	// returns the new count. Used for per-user analyze metering.
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// CacheConfig selects and tunes the cache implementation.
type CacheConfig struct {
	// Type is "memory" (Community) or "redis" (Pro).
	Type string

	// In-process LRU settings; also the L1 under two-phase caching.
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis connection settings, Pro tier only.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// EnableTwoPhase fronts Redis with the local LRU.
	EnableTwoPhase bool
}
