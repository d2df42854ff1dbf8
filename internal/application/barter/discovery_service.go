package barter

import (
	"context"
	"sync"
	"time"

	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/barterloop/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultDiscoveryTimeout bounds one discovery run when the request
// does not name its own deadline
const DefaultDiscoveryTimeout = 2 * time.Second

// batchConcurrency caps parallel seeds in a batch scan. Discovery is
// read-only over one graph snapshot, so seeds fan out safely.
const batchConcurrency = 4

// GraphCache caches built compatibility graphs keyed by pool
// fingerprint. Implementations carry their own TTL; a stale entry is
// simply a miss.
type GraphCache interface {
	Get(ctx context.Context, fingerprint string) (*barter.Graph, bool)
	Set(ctx context.Context, fingerprint string, g *barter.Graph)
}

// DiscoveryService turns the live item pool into ranked cycle
// candidates for a seed item.
type DiscoveryService struct {
	catalog    barter.ItemCatalog
	locks      barter.LockChecker
	builder    *barter.GraphBuilder
	discoverer *barter.CycleDiscoverer
	cache      GraphCache
	logger     *zap.Logger
	timeout    time.Duration
	defaults   barter.DiscoverOptions
}

// DiscoveryServiceOption is a functional option for configuring DiscoveryService
type DiscoveryServiceOption func(*DiscoveryService)

// WithGraphCache enables graph snapshot caching
func WithGraphCache(cache GraphCache) DiscoveryServiceOption {
	return func(s *DiscoveryService) {
		s.cache = cache
	}
}

// WithDiscoveryTimeout overrides the default per-request deadline
func WithDiscoveryTimeout(timeout time.Duration) DiscoveryServiceOption {
	return func(s *DiscoveryService) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithDiscoverDefaults sets server-side search bounds used when a
// request leaves them unset. Zero fields fall through to the domain
// defaults.
func WithDiscoverDefaults(defaults barter.DiscoverOptions) DiscoveryServiceOption {
	return func(s *DiscoveryService) {
		s.defaults = defaults
	}
}

// NewDiscoveryService creates a new DiscoveryService
func NewDiscoveryService(
	catalog barter.ItemCatalog,
	locks barter.LockChecker,
	builder *barter.GraphBuilder,
	discoverer *barter.CycleDiscoverer,
	logger *zap.Logger,
	opts ...DiscoveryServiceOption,
) *DiscoveryService {
	s := &DiscoveryService{
		catalog:    catalog,
		locks:      locks,
		builder:    builder,
		discoverer: discoverer,
		logger:     logger,
		timeout:    DefaultDiscoveryTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// snapshotGraph loads the active pool and returns the compatibility
// graph for it, reusing a cached snapshot when the pool is unchanged.
func (s *DiscoveryService) snapshotGraph(ctx context.Context) (*barter.Graph, error) {
	pool, err := s.catalog.GetActiveBarterItems(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		fingerprint := s.builder.EligibleFingerprint(pool, s.locks)
		if g, ok := s.cache.Get(ctx, fingerprint); ok {
			return g, nil
		}
		g := s.builder.Build(pool, s.locks)
		s.cache.Set(ctx, fingerprint, g)
		return g, nil
	}
	return s.builder.Build(pool, s.locks), nil
}

// options layers request overrides onto the service-level defaults.
// Whatever stays zero is filled by the domain's own defaults.
func (s *DiscoveryService) options(maxLength int, minScore float64, maxResults, topK int) barter.DiscoverOptions {
	o := s.defaults
	if maxLength > 0 {
		o.MaxLength = maxLength
	}
	if minScore > 0 {
		o.MinScore = minScore
	}
	if maxResults > 0 {
		o.MaxResults = maxResults
	}
	if topK > 0 {
		o.TopKPerNode = topK
	}
	return o
}

// DiscoverOpportunities runs one bounded discovery pass for a seed
// item. When the deadline fires mid-search the response carries the
// candidates found so far with Partial set.
func (s *DiscoveryService) DiscoverOpportunities(ctx context.Context, req DiscoverRequest) (*DiscoverResponse, error) {
	g, err := s.snapshotGraph(ctx)
	if err != nil {
		return nil, err
	}
	return s.discoverOnGraph(ctx, g, req.SeedItemID,
		s.options(req.MaxLength, req.MinScore, req.MaxResults, req.TopKPerNode),
		time.Duration(req.TimeoutMs)*time.Millisecond)
}

func (s *DiscoveryService) discoverOnGraph(ctx context.Context, g *barter.Graph, seedItemID uuid.UUID, opts barter.DiscoverOptions, timeout time.Duration) (*DiscoverResponse, error) {
	if timeout <= 0 {
		timeout = s.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	var candidates []*barter.CycleCandidate
	var discoverErr error
	telemetry.WithProfilingLabels(runCtx, map[string]string{
		telemetry.ProfilingLabelOperation: "discover_cycles",
	}, func(ctx context.Context) {
		candidates, discoverErr = s.discoverer.Discover(ctx, g, seedItemID, opts)
	})
	if discoverErr != nil {
		return nil, discoverErr
	}

	partial := runCtx.Err() != nil
	s.logger.Debug("discovery run finished",
		zap.String("seed_item_id", seedItemID.String()),
		zap.Int("graph_nodes", g.Len()),
		zap.Int("graph_edges", g.EdgeCount()),
		zap.Int("candidates", len(candidates)),
		zap.Bool("partial", partial),
		zap.Duration("elapsed", time.Since(started)),
	)

	return &DiscoverResponse{
		SeedItemID: seedItemID,
		Candidates: ToCandidateResponses(candidates),
		Partial:    partial,
	}, nil
}

// DiscoverBatch fans one graph snapshot out across several seeds with
// bounded parallelism. Seeds that fail (for example, an ineligible
// item) are skipped; the batch never fails as a whole.
func (s *DiscoveryService) DiscoverBatch(ctx context.Context, req BatchDiscoverRequest) ([]DiscoverResponse, error) {
	g, err := s.snapshotGraph(ctx)
	if err != nil {
		return nil, err
	}

	opts := s.options(req.MaxLength, req.MinScore, req.MaxResults, 0)
	timeout := time.Duration(req.TimeoutMs) * time.Millisecond

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		responses = make([]DiscoverResponse, 0, len(req.SeedItemIDs))
		sem       = make(chan struct{}, batchConcurrency)
	)

	for _, seed := range req.SeedItemIDs {
		wg.Add(1)
		go func(seed uuid.UUID) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			resp, err := s.discoverOnGraph(ctx, g, seed, opts, timeout)
			if err != nil {
				s.logger.Warn("batch discovery seed skipped",
					zap.String("seed_item_id", seed.String()),
					zap.Error(err),
				)
				return
			}
			mu.Lock()
			responses = append(responses, *resp)
			mu.Unlock()
		}(seed)
	}
	wg.Wait()

	return responses, nil
}
