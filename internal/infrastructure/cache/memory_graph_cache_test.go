package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/barterloop/backend/internal/domain/shared/valueobject"
)

// fakeClock is a controllable clock for TTL tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func buildTestGraph(t *testing.T) *barter.Graph {
	t.Helper()
	book, err := barter.NewItem(uuid.New(), "Paperback novel", "books",
		barter.ItemKindGoods, barter.ConditionGood, valueobject.NewMoneyUSDFromFloat(100),
		barter.WantSpec{Categories: []string{"toys"}})
	require.NoError(t, err)
	toy, err := barter.NewItem(uuid.New(), "Wooden puzzle", "toys",
		barter.ItemKindGoods, barter.ConditionGood, valueobject.NewMoneyUSDFromFloat(100),
		barter.WantSpec{Categories: []string{"books"}})
	require.NoError(t, err)

	builder := barter.NewGraphBuilder(barter.NewMatchScorer())
	return builder.Build([]*barter.Item{book, toy}, nil)
}

func TestMemoryGraphCache_RoundTrip(t *testing.T) {
	cache := NewMemoryGraphCache(time.Minute, newFakeClock())
	g := buildTestGraph(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, g.Fingerprint())
	assert.False(t, ok)

	cache.Set(ctx, g.Fingerprint(), g)

	cached, ok := cache.Get(ctx, g.Fingerprint())
	require.True(t, ok)
	assert.Same(t, g, cached)
}

func TestMemoryGraphCache_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryGraphCache(30*time.Second, clock)
	g := buildTestGraph(t)
	ctx := context.Background()

	cache.Set(ctx, g.Fingerprint(), g)

	clock.Advance(29 * time.Second)
	_, ok := cache.Get(ctx, g.Fingerprint())
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = cache.Get(ctx, g.Fingerprint())
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryGraphCache_SweepsExpiredOnWrite(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryGraphCache(30*time.Second, clock)
	g := buildTestGraph(t)
	ctx := context.Background()

	cache.Set(ctx, "stale-fingerprint", g)
	clock.Advance(time.Minute)

	cache.Set(ctx, g.Fingerprint(), g)
	assert.Equal(t, 1, cache.Len())
}

func TestGraphSnapshot_RestoreRoundTrip(t *testing.T) {
	g := buildTestGraph(t)

	restored := barter.RestoreGraph(g.Snapshot())

	assert.Equal(t, g.Len(), restored.Len())
	assert.Equal(t, g.EdgeCount(), restored.EdgeCount())
	assert.Equal(t, g.Fingerprint(), restored.Fingerprint())

	// Slot lookup survives the round trip
	for slot := 0; slot < g.Len(); slot++ {
		id := g.ItemAt(slot).ID
		restoredSlot, ok := restored.SlotOf(id)
		require.True(t, ok)
		assert.Equal(t, slot, restoredSlot)
	}
}
