package cache

import (
	"context"
	"sync"
	"time"

	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/barterloop/backend/internal/domain/shared"
)

// MemoryGraphCache is a process-local graph cache with TTL expiry.
// Suitable for single-instance deployments; distributed deployments
// should use RedisGraphCache so all instances share snapshots.
type MemoryGraphCache struct {
	mu      sync.RWMutex
	entries map[string]memoryGraphEntry
	ttl     time.Duration
	clock   shared.Clock
}

type memoryGraphEntry struct {
	graph     *barter.Graph
	expiresAt time.Time
}

// DefaultGraphCacheTTL bounds how stale a cached graph can get. The
// fingerprint already invalidates on pool changes; the TTL is a
// backstop against fingerprint collisions and unbounded growth.
const DefaultGraphCacheTTL = 30 * time.Second

// NewMemoryGraphCache creates a new in-memory graph cache. A zero ttl
// falls back to the default; a nil clock to the system clock.
func NewMemoryGraphCache(ttl time.Duration, clock shared.Clock) *MemoryGraphCache {
	if ttl <= 0 {
		ttl = DefaultGraphCacheTTL
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &MemoryGraphCache{
		entries: make(map[string]memoryGraphEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached graph for the fingerprint, if present and fresh
func (c *MemoryGraphCache) Get(ctx context.Context, fingerprint string) (*barter.Graph, bool) {
	c.mu.RLock()
	entry, ok := c.entries[fingerprint]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.clock.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, fingerprint)
		c.mu.Unlock()
		return nil, false
	}
	return entry.graph, true
}

// Set stores a graph under its fingerprint. Expired entries are swept
// opportunistically on write so the map cannot grow without bound.
func (c *MemoryGraphCache) Set(ctx context.Context, fingerprint string, g *barter.Graph) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}

	c.entries[fingerprint] = memoryGraphEntry{
		graph:     g,
		expiresAt: now.Add(c.ttl),
	}
}

// Len returns the number of cached graphs (expired entries included
// until the next sweep)
func (c *MemoryGraphCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
