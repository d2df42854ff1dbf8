package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/barterloop/backend/internal/infrastructure/telemetry"
)

// collectMetric returns the named metric from the reader, failing the
// test when it was never recorded.
func collectMetric(t *testing.T, reader interface {
	Collect(context.Context, *metricdata.ResourceMetrics) error
}, name string) metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %q not recorded", name)
	return metricdata.Metrics{}
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:     false,
		ServiceName: "barterloop-backend",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NoError(t, mp.Shutdown(context.Background()))
	assert.NoError(t, mp.ForceFlush(context.Background()))
}

func TestMeterProvider_MeterUsableWhenDisabled(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled: false,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	meter := mp.Meter("barterloop.test")
	require.NotNil(t, meter)

	counter, err := telemetry.NewCounter(meter, "noop_total", "should not fail", "{event}")
	require.NoError(t, err)
	counter.Inc(context.Background())
}

func TestMeterProvider_GetConfig(t *testing.T) {
	cfg := telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    30 * time.Second,
		ServiceName:       "barterloop-backend",
		Insecure:          true,
	}
	mp, err := telemetry.NewMeterProvider(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, cfg, mp.GetConfig())
}

func TestCounter_AddAndInc(t *testing.T) {
	reader, provider := newManualMeter()
	meter := provider.Meter("barterloop.test")

	counter, err := telemetry.NewCounter(meter, "proposals_total", "Proposals created", "{proposal}")
	require.NoError(t, err)

	ctx := context.Background()
	counter.Inc(ctx, telemetry.AttrOutcome.String("completed"))
	counter.Add(ctx, 4, telemetry.AttrOutcome.String("completed"))
	counter.Inc(ctx, telemetry.AttrOutcome.String("failed"))

	m := collectMetric(t, reader, "proposals_total")
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.True(t, sum.IsMonotonic)

	totals := map[string]int64{}
	for _, dp := range sum.DataPoints {
		if v, found := dp.Attributes.Value("outcome"); found {
			totals[v.AsString()] = dp.Value
		}
	}
	assert.Equal(t, int64(5), totals["completed"])
	assert.Equal(t, int64(1), totals["failed"])
}

func TestHistogram_CustomBoundaries(t *testing.T) {
	reader, provider := newManualMeter()
	meter := provider.Meter("barterloop.test")

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "discovery_duration_seconds",
		Description: "Cycle discovery latency",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	require.NoError(t, err)

	ctx := context.Background()
	hist.Record(ctx, 0.03)
	hist.RecordDuration(ctx, 250*time.Millisecond)

	m := collectMetric(t, reader, "discovery_duration_seconds")
	data, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)

	dp := data.DataPoints[0]
	assert.Equal(t, uint64(2), dp.Count)
	assert.InDelta(t, 0.28, dp.Sum, 1e-9)
	assert.Equal(t, telemetry.HTTPDurationBuckets, dp.Bounds)
}

func TestGauge_LastValueWins(t *testing.T) {
	reader, provider := newManualMeter()
	meter := provider.Meter("barterloop.test")

	gauge, err := telemetry.NewGauge(meter, "active_listings", "Listings currently active", "{listing}")
	require.NoError(t, err)

	ctx := context.Background()
	gauge.Record(ctx, 10)
	gauge.Record(ctx, 7)

	m := collectMetric(t, reader, "active_listings")
	data, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, int64(7), data.DataPoints[0].Value)
}

func TestAttributeKeys(t *testing.T) {
	assert.Equal(t, "http.method", string(telemetry.AttrHTTPMethod))
	assert.Equal(t, "http.status_code", string(telemetry.AttrHTTPStatusCode))
	assert.Equal(t, "http.route", string(telemetry.AttrHTTPRoute))
	assert.Equal(t, "db.operation", string(telemetry.AttrDBOperation))
	assert.Equal(t, "db.table", string(telemetry.AttrDBTable))
	assert.Equal(t, "db.pool.state", string(telemetry.AttrDBState))
	assert.Equal(t, "trigger", string(telemetry.AttrTrigger))
	assert.Equal(t, "outcome", string(telemetry.AttrOutcome))
	assert.Equal(t, "cycle_length", string(telemetry.AttrCycleLength))
	assert.Equal(t, "cache_result", string(telemetry.AttrCacheResult))
}

func TestDurationBucketsAreSorted(t *testing.T) {
	for _, buckets := range [][]float64{
		telemetry.HTTPDurationBuckets,
		telemetry.DBDurationBuckets,
	} {
		for i := 1; i < len(buckets); i++ {
			assert.Less(t, buckets[i-1], buckets[i])
		}
	}
}
