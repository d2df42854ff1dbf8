package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BarterMetrics provides business metrics for the barter marketplace.
// It tracks cycle discovery activity, proposal lifecycle outcomes, and
// the health of the open matching pool.
type BarterMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	discoveryTotal       *Counter
	cyclesFoundTotal     *Counter
	graphCacheTotal      *Counter
	proposalCreatedTotal *Counter
	acceptanceTotal      *Counter
	proposalClosedTotal  *Counter

	// Distribution metrics
	discoveryDuration *Histogram

	// Gauge metrics (point-in-time values)
	openPoolSize    *Gauge
	lockedItems     *Gauge
	activeProposals *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	statsProvider MarketplaceStatsProvider
}

// MarketplaceStatsProvider provides marketplace state for periodic metrics
// collection. The interface lets the telemetry layer poll pool health
// without depending on the barter domain directly.
type MarketplaceStatsProvider interface {
	// GetOpenPoolSize returns the number of ACTIVE, barter-eligible items
	GetOpenPoolSize(ctx context.Context) (int64, error)

	// GetLockedItemCount returns the number of items currently LOCKED
	GetLockedItemCount(ctx context.Context) (int64, error)

	// GetActiveProposalCount returns the number of non-terminal proposals
	GetActiveProposalCount(ctx context.Context) (int64, error)
}

// BarterMetricsConfig holds configuration for barter metrics.
type BarterMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	StatsProvider   MarketplaceStatsProvider
}

// NewBarterMetrics creates a new BarterMetrics instance.
func NewBarterMetrics(cfg BarterMetricsConfig) (*BarterMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BarterMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		statsProvider: cfg.StatsProvider,
	}

	var err error

	// Discovery metrics
	bm.discoveryTotal, err = NewCounter(
		cfg.Meter,
		"barter_discovery_total",
		"Total number of cycle discovery runs",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	bm.cyclesFoundTotal, err = NewCounter(
		cfg.Meter,
		"barter_cycles_found_total",
		"Total number of trade cycles surfaced by discovery",
		"{cycles}",
	)
	if err != nil {
		return nil, err
	}

	bm.graphCacheTotal, err = NewCounter(
		cfg.Meter,
		"barter_graph_cache_total",
		"Total number of compatibility graph cache lookups",
		"{lookups}",
	)
	if err != nil {
		return nil, err
	}

	bm.discoveryDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "barter_discovery_duration_seconds",
		Description: "Duration of cycle discovery runs",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	// Proposal lifecycle metrics
	bm.proposalCreatedTotal, err = NewCounter(
		cfg.Meter,
		"barter_proposal_created_total",
		"Total number of chain proposals created",
		"{proposals}",
	)
	if err != nil {
		return nil, err
	}

	bm.acceptanceTotal, err = NewCounter(
		cfg.Meter,
		"barter_acceptance_total",
		"Total number of participant acceptance votes recorded",
		"{votes}",
	)
	if err != nil {
		return nil, err
	}

	bm.proposalClosedTotal, err = NewCounter(
		cfg.Meter,
		"barter_proposal_closed_total",
		"Total number of proposals reaching a terminal state",
		"{proposals}",
	)
	if err != nil {
		return nil, err
	}

	// Pool gauge metrics
	bm.openPoolSize, err = NewGauge(
		cfg.Meter,
		"barter_open_pool_size",
		"Number of active items eligible for matching",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	bm.lockedItems, err = NewGauge(
		cfg.Meter,
		"barter_locked_items",
		"Number of items currently locked by proposals",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	bm.activeProposals, err = NewGauge(
		cfg.Meter,
		"barter_active_proposals",
		"Number of proposals awaiting acceptance or executing",
		"{proposals}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Discovery Metrics
// =============================================================================

// DiscoveryTrigger identifies what initiated a discovery run, for metrics labeling.
type DiscoveryTrigger string

const (
	DiscoveryTriggerAPI   DiscoveryTrigger = "api"
	DiscoveryTriggerBatch DiscoveryTrigger = "batch"
)

// RecordDiscovery records a completed discovery run along with the number
// of cycles it surfaced and how long it took.
func (bm *BarterMetrics) RecordDiscovery(ctx context.Context, trigger DiscoveryTrigger, cyclesFound int, duration time.Duration) {
	bm.discoveryTotal.Inc(ctx,
		AttrTrigger.String(string(trigger)),
		AttrOutcome.String(discoveryOutcome(cyclesFound)),
	)
	if cyclesFound > 0 {
		bm.cyclesFoundTotal.Add(ctx, int64(cyclesFound),
			AttrTrigger.String(string(trigger)),
		)
	}
	bm.discoveryDuration.RecordDuration(ctx, duration,
		AttrTrigger.String(string(trigger)),
	)
}

// RecordDiscoveryError records a discovery run that failed.
func (bm *BarterMetrics) RecordDiscoveryError(ctx context.Context, trigger DiscoveryTrigger) {
	bm.discoveryTotal.Inc(ctx,
		AttrTrigger.String(string(trigger)),
		AttrOutcome.String("error"),
	)
}

// RecordGraphCache records the outcome of a compatibility graph cache lookup.
func (bm *BarterMetrics) RecordGraphCache(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	bm.graphCacheTotal.Inc(ctx, AttrCacheResult.String(result))
}

func discoveryOutcome(cyclesFound int) string {
	if cyclesFound > 0 {
		return "hit"
	}
	return "empty"
}

// =============================================================================
// Proposal Lifecycle Metrics
// =============================================================================

// ProposalOutcome identifies the terminal state a proposal reached, for
// metrics labeling.
type ProposalOutcome string

const (
	ProposalOutcomeCompleted ProposalOutcome = "completed"
	ProposalOutcomeRejected  ProposalOutcome = "rejected"
	ProposalOutcomeCancelled ProposalOutcome = "cancelled"
	ProposalOutcomeExpired   ProposalOutcome = "expired"
	ProposalOutcomeFailed    ProposalOutcome = "failed"
)

// RecordProposalCreated records a proposal creation event.
// This should be called from the application layer after activation succeeds.
func (bm *BarterMetrics) RecordProposalCreated(ctx context.Context, cycleLength int) {
	bm.proposalCreatedTotal.Inc(ctx,
		AttrCycleLength.Int(cycleLength),
	)
}

// RecordAcceptance records a single participant acceptance vote.
func (bm *BarterMetrics) RecordAcceptance(ctx context.Context) {
	bm.acceptanceTotal.Inc(ctx)
}

// RecordProposalClosed records a proposal reaching a terminal state.
func (bm *BarterMetrics) RecordProposalClosed(ctx context.Context, outcome ProposalOutcome) {
	bm.proposalClosedTotal.Inc(ctx,
		AttrOutcome.String(string(outcome)),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of pool gauge metrics.
// This is non-blocking - use Stop() to stop collection.
func (bm *BarterMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}

		go bm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (bm *BarterMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectPoolMetrics(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic barter metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic barter metrics collection")
			return
		case <-ticker.C:
			bm.collectPoolMetrics(ctx)
		}
	}
}

// collectPoolMetrics collects pool health gauge metrics.
func (bm *BarterMetrics) collectPoolMetrics(ctx context.Context) {
	if bm.statsProvider == nil {
		bm.logger.Debug("No stats provider configured, skipping pool metrics collection")
		return
	}

	if poolSize, err := bm.statsProvider.GetOpenPoolSize(ctx); err != nil {
		bm.logger.Warn("Failed to get open pool size", zap.Error(err))
	} else {
		bm.openPoolSize.Record(ctx, poolSize)
	}

	if locked, err := bm.statsProvider.GetLockedItemCount(ctx); err != nil {
		bm.logger.Warn("Failed to get locked item count", zap.Error(err))
	} else {
		bm.lockedItems.Record(ctx, locked)
	}

	if active, err := bm.statsProvider.GetActiveProposalCount(ctx); err != nil {
		bm.logger.Warn("Failed to get active proposal count", zap.Error(err))
	} else {
		bm.activeProposals.Record(ctx, active)
	}
}

// Stop stops the periodic collection.
func (bm *BarterMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBarterMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
