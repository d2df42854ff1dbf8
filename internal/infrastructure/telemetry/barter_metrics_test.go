package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/barterloop/backend/internal/infrastructure/telemetry"
)

func TestNewBarterMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	bm, err := telemetry.NewBarterMetrics(telemetry.BarterMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})

	require.NoError(t, err)
	require.NotNil(t, bm)
}

func TestNewBarterMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBarterMetrics(telemetry.BarterMetricsConfig{
		Meter:  nil,
		Logger: zap.NewNop(),
	})

	require.Error(t, err)
	assert.Nil(t, bm)
	assert.Equal(t, "NewBarterMetrics: meter cannot be nil", err.Error())
}

func TestBarterMetrics_RecordDiscovery(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	bm, err := telemetry.NewBarterMetrics(telemetry.BarterMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic regardless of outcome
	bm.RecordDiscovery(ctx, telemetry.DiscoveryTriggerAPI, 3, 120*time.Millisecond)
	bm.RecordDiscovery(ctx, telemetry.DiscoveryTriggerBatch, 0, 2*time.Second)
	bm.RecordDiscoveryError(ctx, telemetry.DiscoveryTriggerAPI)
}

func TestBarterMetrics_RecordGraphCache(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	bm, err := telemetry.NewBarterMetrics(telemetry.BarterMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	bm.RecordGraphCache(ctx, true)
	bm.RecordGraphCache(ctx, false)
}

func TestBarterMetrics_RecordProposalLifecycle(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	bm, err := telemetry.NewBarterMetrics(telemetry.BarterMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	bm.RecordProposalCreated(ctx, 3)
	bm.RecordAcceptance(ctx)
	bm.RecordAcceptance(ctx)
	bm.RecordProposalClosed(ctx, telemetry.ProposalOutcomeCompleted)
	bm.RecordProposalClosed(ctx, telemetry.ProposalOutcomeExpired)
}

// Mock implementation for testing periodic collection

type mockStatsProvider struct {
	poolSize  int64
	locked    int64
	proposals int64
	err       error
}

func (m *mockStatsProvider) GetOpenPoolSize(ctx context.Context) (int64, error) {
	return m.poolSize, m.err
}

func (m *mockStatsProvider) GetLockedItemCount(ctx context.Context) (int64, error) {
	return m.locked, m.err
}

func (m *mockStatsProvider) GetActiveProposalCount(ctx context.Context) (int64, error) {
	return m.proposals, m.err
}

func TestBarterMetrics_PeriodicCollection(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	bm, err := telemetry.NewBarterMetrics(telemetry.BarterMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
		StatsProvider: &mockStatsProvider{
			poolSize:  42,
			locked:    6,
			proposals: 2,
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start periodic collection with short interval for testing
	bm.StartPeriodicCollection(ctx, 100*time.Millisecond)

	// Wait for at least one collection cycle
	time.Sleep(150 * time.Millisecond)

	bm.Stop()
}

func TestBarterMetrics_PeriodicCollection_NoProvider(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	bm, err := telemetry.NewBarterMetrics(telemetry.BarterMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
		// No stats provider
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Should not panic with no stats provider
	bm.StartPeriodicCollection(ctx, 50*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	bm.Stop()
}

func TestBarterMetrics_PeriodicCollection_ProviderError(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	bm, err := telemetry.NewBarterMetrics(telemetry.BarterMetricsConfig{
		Meter:         meter,
		Logger:        zap.NewNop(),
		StatsProvider: &mockStatsProvider{err: errors.New("db unavailable")},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Provider errors are logged, not fatal
	bm.StartPeriodicCollection(ctx, 50*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	bm.Stop()
}

func TestBarterMetrics_Stop_Idempotent(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	bm, err := telemetry.NewBarterMetrics(telemetry.BarterMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	// Calling Stop multiple times should not panic
	bm.Stop()
	bm.Stop()
	bm.Stop()
}

func TestBarterMetrics_StartPeriodicCollection_OnlyOnce(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	bm, err := telemetry.NewBarterMetrics(telemetry.BarterMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Calling StartPeriodicCollection multiple times should only start once
	bm.StartPeriodicCollection(ctx, time.Hour)
	bm.StartPeriodicCollection(ctx, time.Minute)
	bm.StartPeriodicCollection(ctx, time.Second)

	bm.Stop()
}

func TestDiscoveryTrigger_Values(t *testing.T) {
	assert.Equal(t, telemetry.DiscoveryTrigger("api"), telemetry.DiscoveryTriggerAPI)
	assert.Equal(t, telemetry.DiscoveryTrigger("batch"), telemetry.DiscoveryTriggerBatch)
}

func TestProposalOutcome_Values(t *testing.T) {
	assert.Equal(t, telemetry.ProposalOutcome("completed"), telemetry.ProposalOutcomeCompleted)
	assert.Equal(t, telemetry.ProposalOutcome("rejected"), telemetry.ProposalOutcomeRejected)
	assert.Equal(t, telemetry.ProposalOutcome("cancelled"), telemetry.ProposalOutcomeCancelled)
	assert.Equal(t, telemetry.ProposalOutcome("expired"), telemetry.ProposalOutcomeExpired)
	assert.Equal(t, telemetry.ProposalOutcome("failed"), telemetry.ProposalOutcomeFailed)
}

func TestMetricsError_Error(t *testing.T) {
	err := &telemetry.MetricsError{
		Op:  "TestOperation",
		Err: "test error message",
	}

	assert.Equal(t, "TestOperation: test error message", err.Error())
}
