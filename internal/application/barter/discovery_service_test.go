package barter

import (
	"context"
	"sync"
	"testing"

	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingGraphCache is an in-memory GraphCache that counts hits
type countingGraphCache struct {
	mu     sync.Mutex
	graphs map[string]*barter.Graph
	hits   int
	misses int
}

func newCountingGraphCache() *countingGraphCache {
	return &countingGraphCache{graphs: make(map[string]*barter.Graph)}
}

func (c *countingGraphCache) Get(ctx context.Context, fingerprint string) (*barter.Graph, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.graphs[fingerprint]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return g, ok
}

func (c *countingGraphCache) Set(ctx context.Context, fingerprint string, g *barter.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graphs[fingerprint] = g
}

func newCachedDiscovery(t *testing.T, cache GraphCache, items ...*barter.Item) (*DiscoveryService, *memoryItemRepo) {
	t.Helper()
	repo := newMemoryItemRepo(items...)
	scorer := barter.NewMatchScorer()
	return NewDiscoveryService(repo, barter.NewMemoryLockTable(nil),
		barter.NewGraphBuilder(scorer),
		barter.NewCycleDiscoverer(scorer, barter.NewValueBalancer()),
		zap.NewNop(), WithGraphCache(cache)), repo
}

func TestDiscoveryService_GraphCacheReuse(t *testing.T) {
	book, toy, gadget := threeParties(t)
	cache := newCountingGraphCache()
	service, repo := newCachedDiscovery(t, cache, book, toy, gadget)
	ctx := context.Background()

	_, err := service.DiscoverOpportunities(ctx, DiscoverRequest{SeedItemID: book.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.misses)

	// Unchanged pool: the second run reuses the cached graph
	_, err = service.DiscoverOpportunities(ctx, DiscoverRequest{SeedItemID: toy.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	// A pool mutation changes the fingerprint and forces a rebuild
	fresh, err := repo.FindByID(ctx, book.ID)
	require.NoError(t, err)
	fresh.IncrementVersion()
	require.NoError(t, repo.Save(ctx, fresh))

	_, err = service.DiscoverOpportunities(ctx, DiscoverRequest{SeedItemID: toy.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.misses)
}

func TestDiscoveryService_IneligibleSeed(t *testing.T) {
	book, toy, gadget := threeParties(t)
	require.NoError(t, book.Withdraw())
	service, _ := newCachedDiscovery(t, newCountingGraphCache(), book, toy, gadget)

	_, err := service.DiscoverOpportunities(context.Background(),
		DiscoverRequest{SeedItemID: book.ID})
	assert.Error(t, err)
}

func TestDiscoveryService_DiscoverBatch(t *testing.T) {
	book, toy, gadget := threeParties(t)
	service, _ := newCachedDiscovery(t, newCountingGraphCache(), book, toy, gadget)

	responses, err := service.DiscoverBatch(context.Background(), BatchDiscoverRequest{
		SeedItemIDs: []uuid.UUID{book.ID, toy.ID, gadget.ID, uuid.New()},
	})
	require.NoError(t, err)

	// The unknown seed is skipped, the valid three each get results
	require.Len(t, responses, 3)
	seen := make(map[uuid.UUID]bool)
	for _, resp := range responses {
		seen[resp.SeedItemID] = true
		assert.NotEmpty(t, resp.Candidates)
	}
	assert.True(t, seen[book.ID])
	assert.True(t, seen[toy.ID])
	assert.True(t, seen[gadget.ID])
}

func TestDiscoveryService_LockedItemsExcluded(t *testing.T) {
	book, toy, gadget := threeParties(t)
	repo := newMemoryItemRepo(book, toy, gadget)
	locks := barter.NewMemoryLockTable(nil)
	scorer := barter.NewMatchScorer()
	service := NewDiscoveryService(repo, locks,
		barter.NewGraphBuilder(scorer),
		barter.NewCycleDiscoverer(scorer, barter.NewValueBalancer()),
		zap.NewNop())

	_, err := locks.AcquireAll([]uuid.UUID{toy.ID}, uuid.New(), DefaultLockTTL)
	require.NoError(t, err)

	// With the toy locked the three-way cycle is gone; the seed still
	// resolves because the book itself is free
	resp, err := service.DiscoverOpportunities(context.Background(),
		DiscoverRequest{SeedItemID: book.ID})
	require.NoError(t, err)
	for _, cand := range resp.Candidates {
		for _, edge := range cand.Edges {
			assert.NotEqual(t, toy.ID, edge.FromItemID)
		}
	}
}

func TestDiscoveryService_DiscoverDefaults(t *testing.T) {
	book, toy, gadget := threeParties(t)
	repo := newMemoryItemRepo(book, toy, gadget)
	scorer := barter.NewMatchScorer()
	service := NewDiscoveryService(repo, barter.NewMemoryLockTable(nil),
		barter.NewGraphBuilder(scorer),
		barter.NewCycleDiscoverer(scorer, barter.NewValueBalancer()),
		zap.NewNop(),
		WithDiscoverDefaults(barter.DiscoverOptions{MaxLength: 2}))
	ctx := context.Background()

	// The pool only closes as a triangle; the server-side default of
	// two-party swaps finds nothing
	resp, err := service.DiscoverOpportunities(ctx, DiscoverRequest{SeedItemID: book.ID})
	require.NoError(t, err)
	assert.Empty(t, resp.Candidates)

	// A per-request override still wins over the default
	resp, err = service.DiscoverOpportunities(ctx, DiscoverRequest{SeedItemID: book.ID, MaxLength: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Candidates)
}
