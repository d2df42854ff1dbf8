package barter

import (
	"context"
	"sort"
	"time"

	"github.com/barterloop/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Discovery defaults. MinScore and MaxLength are quality/tractability
// gates; callers may override per request within the allowed range.
const (
	MinCycleLength        = 2
	MaxCycleLengthCap     = 8
	DefaultMaxCycleLength = 6
	DefaultTopKPerNode    = 3
	DefaultMinCycleScore  = 0.50
	DefaultMaxResults     = 5
	DefaultCandidateTTL   = 15 * time.Minute
)

// DiscoverOptions bounds a single discovery request
type DiscoverOptions struct {
	MaxLength    int           // maximum cycle length (edges), 2..8
	TopKPerNode  int           // branching-factor cap per node
	MinScore     float64       // minimum acceptable aggregate cycle score
	MaxResults   int           // result cap after ranking
	CandidateTTL time.Duration // how long returned candidates stay promotable
}

// withDefaults fills zero values and clamps out-of-range settings
func (o DiscoverOptions) withDefaults() DiscoverOptions {
	if o.MaxLength == 0 {
		o.MaxLength = DefaultMaxCycleLength
	}
	if o.MaxLength < MinCycleLength {
		o.MaxLength = MinCycleLength
	}
	if o.MaxLength > MaxCycleLengthCap {
		o.MaxLength = MaxCycleLengthCap
	}
	if o.TopKPerNode <= 0 {
		o.TopKPerNode = DefaultTopKPerNode
	}
	if o.MinScore <= 0 {
		o.MinScore = DefaultMinCycleScore
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.CandidateTTL <= 0 {
		o.CandidateTTL = DefaultCandidateTTL
	}
	return o
}

// CycleDiscoverer finds closed exchange walks back to a seed item.
// Discovery holds no shared mutable state: every call works on its own
// graph snapshot and is safe to run in parallel across seeds.
type CycleDiscoverer struct {
	scorer   *MatchScorer
	balancer *ValueBalancer
}

// NewCycleDiscoverer creates a new CycleDiscoverer
func NewCycleDiscoverer(scorer *MatchScorer, balancer *ValueBalancer) *CycleDiscoverer {
	return &CycleDiscoverer{
		scorer:   scorer,
		balancer: balancer,
	}
}

// rawCycle is an enumerated closed walk before scoring and filtering
type rawCycle struct {
	slots  []int
	scores []float64
}

// cycleSearch carries the mutable state of one DFS. Unrestricted DFS
// over a compatibility graph is exponential, so the search explores
// only the top-K outgoing edges per node and prunes eagerly.
type cycleSearch struct {
	ctx         context.Context
	g           *Graph
	opts        DiscoverOptions
	seed        int
	path        []int
	scores      []float64
	scoreSum    float64
	onPath      []bool
	usersOnPath map[uuid.UUID]struct{}
	dead        []bool
	raw         []rawCycle
}

// Discover enumerates, scores, balances, deduplicates and ranks cycle
// candidates starting and ending at the seed item. On context
// cancellation it returns whatever candidates were found so far.
func (d *CycleDiscoverer) Discover(ctx context.Context, g *Graph, seedItemID uuid.UUID, opts DiscoverOptions) ([]*CycleCandidate, error) {
	opts = opts.withDefaults()

	seed, ok := g.SlotOf(seedItemID)
	if !ok {
		return nil, shared.NewDomainError("INVALID_INPUT",
			"Seed item is not eligible for barter discovery")
	}

	s := &cycleSearch{
		ctx:         ctx,
		g:           g,
		opts:        opts,
		seed:        seed,
		path:        []int{seed},
		onPath:      make([]bool, g.Len()),
		usersOnPath: map[uuid.UUID]struct{}{g.ItemAt(seed).OwnerID: {}},
		dead:        make([]bool, g.Len()),
	}
	s.onPath[seed] = true
	s.walk(seed)

	return d.assemble(g, s.raw, opts), nil
}

// walk explores the top-K outgoing edges of v, emitting a raw cycle
// whenever an edge closes back to the seed with length >= 2. Returns
// true if any cycle was emitted through v's subtree; nodes whose
// subtree yields nothing are memoized as dead for the rest of this
// request and skipped thereafter.
func (s *cycleSearch) walk(v int) bool {
	edges := s.g.OutEdges(v)
	if len(edges) > s.opts.TopKPerNode {
		edges = edges[:s.opts.TopKPerNode]
	}

	emitted := false
	for _, e := range edges {
		if s.ctx.Err() != nil {
			return emitted
		}

		if e.To == s.seed {
			if len(s.path) >= MinCycleLength {
				s.emit(e.Score)
				emitted = true
			}
			continue
		}
		if len(s.path) >= s.opts.MaxLength {
			continue // no room for another node before closing
		}
		if s.onPath[e.To] || s.dead[e.To] {
			continue
		}
		owner := s.g.ItemAt(e.To).OwnerID
		if _, dup := s.usersOnPath[owner]; dup {
			continue // a user appears at most once per cycle
		}
		if !s.scoreCanReachMin(e.Score) {
			continue
		}

		s.push(e)
		childEmitted := s.walk(e.To)
		s.pop(e)

		if childEmitted {
			emitted = true
		} else {
			s.dead[e.To] = true
		}
	}
	return emitted
}

// scoreCanReachMin is the upper-bound prune: even if every remaining
// edge up to MaxLength scored a perfect 1.0, could the cycle mean
// still reach MinScore? If not, the branch is abandoned.
func (s *cycleSearch) scoreCanReachMin(nextScore float64) bool {
	known := len(s.scores) + 1
	knownSum := s.scoreSum + nextScore
	remaining := s.opts.MaxLength - known
	if remaining < 1 {
		remaining = 1 // closing edge at minimum
	}
	bound := (knownSum + float64(remaining)) / float64(known+remaining)
	return bound >= s.opts.MinScore
}

func (s *cycleSearch) push(e Edge) {
	s.path = append(s.path, e.To)
	s.scores = append(s.scores, e.Score)
	s.scoreSum += e.Score
	s.onPath[e.To] = true
	s.usersOnPath[s.g.ItemAt(e.To).OwnerID] = struct{}{}
}

func (s *cycleSearch) pop(e Edge) {
	s.path = s.path[:len(s.path)-1]
	s.scores = s.scores[:len(s.scores)-1]
	s.scoreSum -= e.Score
	s.onPath[e.To] = false
	delete(s.usersOnPath, s.g.ItemAt(e.To).OwnerID)
}

// emit records the current path as a closed walk. The closing edge
// score completes the per-edge score list.
func (s *cycleSearch) emit(closingScore float64) {
	slots := make([]int, len(s.path))
	copy(slots, s.path)
	scores := make([]float64, len(s.scores), len(s.scores)+1)
	copy(scores, s.scores)
	scores = append(scores, closingScore)
	s.raw = append(s.raw, rawCycle{slots: slots, scores: scores})
}

// assemble turns raw walks into ranked candidates: score gate, balance
// gate, rotation dedupe, sort by score desc then differential asc,
// truncate to the result cap.
func (d *CycleDiscoverer) assemble(g *Graph, raw []rawCycle, opts DiscoverOptions) []*CycleCandidate {
	seen := make(map[string]struct{}, len(raw))
	candidates := make([]*CycleCandidate, 0, len(raw))

	for _, rc := range raw {
		score := d.scorer.ScoreCycle(rc.scores)
		if score < opts.MinScore {
			continue
		}

		edges := candidateEdges(g, rc)
		diff := d.balancer.ComputeDifferential(edges)
		if err := d.balancer.Check(diff); err != nil {
			continue // lopsided in cash terms, filtered silently
		}

		cand := &CycleCandidate{
			Edges:             edges,
			AggregateScore:    score,
			CashDifferential:  diff.TotalDifferential.Amount(),
			PerParticipantNet: diff.NetAmounts(),
		}
		for _, e := range edges {
			cand.Participants = append(cand.Participants, e.FromOwnerID)
		}

		key := cand.CanonicalKey()
		if _, dup := seen[key]; dup {
			continue // same cycle found via another rotation
		}
		seen[key] = struct{}{}
		candidates = append(candidates, cand)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].AggregateScore != candidates[j].AggregateScore {
			return candidates[i].AggregateScore > candidates[j].AggregateScore
		}
		return candidates[i].CashDifferential.LessThan(candidates[j].CashDifferential)
	})

	if len(candidates) > opts.MaxResults {
		candidates = candidates[:opts.MaxResults]
	}

	expiresAt := time.Now().Add(opts.CandidateTTL)
	for _, cand := range candidates {
		cand.ID = uuid.New()
		cand.ExpiresAt = expiresAt
	}
	return candidates
}

// candidateEdges materializes the slot walk into owner/value edges
func candidateEdges(g *Graph, rc rawCycle) []CandidateEdge {
	edges := make([]CandidateEdge, 0, len(rc.slots))
	for i := range rc.slots {
		from := g.ItemAt(rc.slots[i])
		to := g.ItemAt(rc.slots[(i+1)%len(rc.slots)])
		edges = append(edges, CandidateEdge{
			FromItemID:  from.ID,
			ToItemID:    to.ID,
			FromOwnerID: from.OwnerID,
			ToOwnerID:   to.OwnerID,
			FromValue:   from.EstimatedValue,
			ToValue:     to.EstimatedValue,
			Score:       rc.scores[i],
		})
	}
	return edges
}
