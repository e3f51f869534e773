// Package cache provides caching implementations for SikaGuard.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sikaguard/sikaguard/internal/domain"
)

// LRUCache is an in-process cache with per-entry TTL and
// least-recently-used eviction. It serves the Community tier on its
// own and acts as L1 under TwoPhaseCache.
//
// Keys are namespaced by tenant; expired entries are dropped lazily on
// read rather than by a background sweeper.
type LRUCache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string]*node
	counters map[string]*windowCounter

	// head/tail are sentinels of the recency list; head.next is the
	// most recently used entry.
	head, tail *node
}

type node struct {
	key        string
	value      []byte
	expiresAt  time.Time
	prev, next *node
}

// windowCounter is a fixed-window counter. The window restarts, rather
// than slides, when it elapses.
type windowCounter struct {
	n        int64
	resetsAt time.Time
}

const defaultCapacity = 10000

// NewLRUCache creates a new LRU cache with the specified max size.
func NewLRUCache(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	c := &LRUCache{
		capacity: capacity,
		entries:  make(map[string]*node),
		counters: make(map[string]*windowCounter),
		head:     &node{},
		tail:     &node{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get retrieves a value. A miss (or an expired entry) returns nil with
// no error.
func (c *LRUCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[scope(tenantID, key)]
	if !ok {
		return nil, nil
	}
	if time.Now().After(n.expiresAt) {
		c.unlink(n)
		delete(c.entries, n.key)
		return nil, nil
	}

	c.touch(n)
	return n.value, nil
}

// Set stores a value with a TTL, evicting from the cold end when the
// cache is over capacity.
func (c *LRUCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	k := scope(tenantID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[k]; ok {
		n.value = value
		n.expiresAt = time.Now().Add(ttl)
		c.touch(n)
		return nil
	}

	n := &node{key: k, value: value, expiresAt: time.Now().Add(ttl)}
	c.entries[k] = n
	c.pushFront(n)

	for len(c.entries) > c.capacity {
		cold := c.tail.prev
		if cold == c.head {
			break
		}
		c.unlink(cold)
		delete(c.entries, cold.key)
	}

	return nil
}

// Delete removes a value. Deleting an absent key is not an error.
func (c *LRUCache) Delete(ctx context.Context, tenantID string, key string) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[scope(tenantID, key)]; ok {
		c.unlink(n)
		delete(c.entries, n.key)
	}
	return nil
}

// GetProfile retrieves a cached behavior profile, nil on miss.
func (c *LRUCache) GetProfile(ctx context.Context, tenantID string, userID string) (*domain.BehaviorProfile, error) {
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
func (c *LRUCache) SetProfile(ctx context.Context, tenantID string, userID string, profile *domain.BehaviorProfile, ttl time.Duration) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.Set(ctx, tenantID, "profile:"+userID, data, ttl)
}

// IncrementCounter bumps a fixed-window counter and returns the new
// count. The count restarts at 1 once the window elapses.
func (c *LRUCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	k := scope(tenantID, "counter:"+key)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	w, ok := c.counters[k]
	if !ok || now.After(w.resetsAt) {
		c.counters[k] = &windowCounter{n: 1, resetsAt: now.Add(window)}
		return 1, nil
	}

	w.n++
	return w.n, nil
}

// Ping checks cache health. In-process, so always healthy.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close drops all cached data.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*node)
	c.counters = make(map[string]*windowCounter)
	c.head.next = c.tail
	c.tail.prev = c.head
	return nil
}

// Stats returns the current entry count and the configured capacity.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), c.capacity
}

func scope(tenantID, key string) string {
	return tenantID + ":" + key
}

func (c *LRUCache) pushFront(n *node) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *LRUCache) unlink(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}

func (c *LRUCache) touch(n *node) {
	c.unlink(n)
	c.pushFront(n)
}
