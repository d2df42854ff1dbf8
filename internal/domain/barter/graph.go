package barter

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/google/uuid"
)

// Edge is a directed compatibility edge between two item slots: the
// owner of the source item wants the target item. Score is in [0,1].
type Edge struct {
	From  int
	To    int
	Score float64
}

// Graph is a compatibility graph over a snapshot of the item pool.
// Nodes are integer slots into the item slice, so traversal works on
// index-based visited sets instead of chasing object references.
// A Graph is immutable after Build and safe for concurrent reads.
type Graph struct {
	items       []*Item
	index       map[uuid.UUID]int
	adj         [][]Edge
	fingerprint string
}

// Len returns the number of nodes in the graph
func (g *Graph) Len() int {
	return len(g.items)
}

// EdgeCount returns the total number of edges
func (g *Graph) EdgeCount() int {
	var n int
	for _, edges := range g.adj {
		n += len(edges)
	}
	return n
}

// ItemAt returns the item occupying the given slot
func (g *Graph) ItemAt(slot int) *Item {
	return g.items[slot]
}

// SlotOf returns the slot of the item with the given ID
func (g *Graph) SlotOf(itemID uuid.UUID) (int, bool) {
	slot, ok := g.index[itemID]
	return slot, ok
}

// OutEdges returns the outgoing edges of a slot, sorted by score
// descending (ties broken by target slot for determinism)
func (g *Graph) OutEdges(slot int) []Edge {
	return g.adj[slot]
}

// Fingerprint identifies the item pool snapshot this graph was built
// from (item ids + versions). Two graphs over identical pools share a
// fingerprint, which keys the short-TTL graph cache.
func (g *Graph) Fingerprint() string {
	return g.fingerprint
}

// GraphSnapshot is the serializable form of a Graph, used by caches
// that round-trip a graph through a byte store.
type GraphSnapshot struct {
	Items       []*Item  `json:"items"`
	Adjacency   [][]Edge `json:"adjacency"`
	Fingerprint string   `json:"fingerprint"`
}

// Snapshot exports the graph for serialization
func (g *Graph) Snapshot() GraphSnapshot {
	return GraphSnapshot{
		Items:       g.items,
		Adjacency:   g.adj,
		Fingerprint: g.fingerprint,
	}
}

// RestoreGraph rebuilds a Graph from a snapshot
func RestoreGraph(s GraphSnapshot) *Graph {
	g := &Graph{
		items:       s.Items,
		index:       make(map[uuid.UUID]int, len(s.Items)),
		adj:         s.Adjacency,
		fingerprint: s.Fingerprint,
	}
	if g.adj == nil {
		g.adj = make([][]Edge, len(s.Items))
	}
	for slot, item := range s.Items {
		g.index[item.ID] = slot
	}
	return g
}

// LockChecker reports whether an item is currently held by an active
// proposal. The lock table satisfies this interface.
type LockChecker interface {
	IsLocked(itemID uuid.UUID) bool
}

// GraphBuilder turns the live item pool into a compatibility graph
type GraphBuilder struct {
	scorer         *MatchScorer
	relevanceFloor float64
}

// GraphBuilderOption is a functional option for configuring GraphBuilder
type GraphBuilderOption func(*GraphBuilder)

// WithRelevanceFloor sets the minimum edge score for inclusion
func WithRelevanceFloor(floor float64) GraphBuilderOption {
	return func(b *GraphBuilder) {
		if floor > 0 {
			b.relevanceFloor = floor
		}
	}
}

// DefaultRelevanceFloor is the minimum want-satisfaction score below
// which no edge is created
const DefaultRelevanceFloor = 0.35

// NewGraphBuilder creates a new GraphBuilder
func NewGraphBuilder(scorer *MatchScorer, opts ...GraphBuilderOption) *GraphBuilder {
	b := &GraphBuilder{
		scorer:         scorer,
		relevanceFloor: DefaultRelevanceFloor,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build constructs the compatibility graph from the given pool. Only
// ACTIVE, barter-eligible items not held by an active proposal become
// nodes; an ordered pair (X, Y) with different owners becomes an edge
// X→Y when Y satisfies X's wants at or above the relevance floor.
// Build is a pure read: item state may drift afterwards, which is why
// proposal creation re-validates before committing.
func (b *GraphBuilder) Build(pool []*Item, locks LockChecker) *Graph {
	eligible := eligiblePool(pool, locks)

	g := &Graph{
		items: eligible,
		index: make(map[uuid.UUID]int, len(eligible)),
		adj:   make([][]Edge, len(eligible)),
	}
	for slot, item := range eligible {
		g.index[item.ID] = slot
	}

	for from, wanter := range eligible {
		for to, offer := range eligible {
			if from == to || wanter.OwnerID == offer.OwnerID {
				continue
			}
			score := b.scorer.ScoreEdge(wanter, offer)
			if score < b.relevanceFloor {
				continue
			}
			g.adj[from] = append(g.adj[from], Edge{From: from, To: to, Score: score})
		}
		sort.SliceStable(g.adj[from], func(i, j int) bool {
			if g.adj[from][i].Score != g.adj[from][j].Score {
				return g.adj[from][i].Score > g.adj[from][j].Score
			}
			return g.adj[from][i].To < g.adj[from][j].To
		})
	}

	g.fingerprint = poolFingerprint(eligible)
	return g
}

// EligibleFingerprint computes the fingerprint the graph built from
// this pool would carry, without paying for edge scoring. Used as the
// graph cache key.
func (b *GraphBuilder) EligibleFingerprint(pool []*Item, locks LockChecker) string {
	return poolFingerprint(eligiblePool(pool, locks))
}

// eligiblePool filters out items that cannot enter a cycle and assigns
// deterministic slots regardless of input order
func eligiblePool(pool []*Item, locks LockChecker) []*Item {
	eligible := make([]*Item, 0, len(pool))
	for _, item := range pool {
		if item == nil || !item.IsAvailableForBarter() {
			continue
		}
		if locks != nil && locks.IsLocked(item.ID) {
			continue
		}
		eligible = append(eligible, item)
	}
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].ID.String() < eligible[j].ID.String()
	})
	return eligible
}

// poolFingerprint hashes the sorted item ids and versions of the pool
func poolFingerprint(items []*Item) string {
	h := fnv.New64a()
	for _, item := range items {
		fmt.Fprintf(h, "%s:%d;", item.ID, item.Version)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
