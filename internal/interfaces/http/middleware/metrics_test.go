package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/barterloop/backend/internal/interfaces/http/middleware"
)

func newMeteredEngine(t *testing.T) (*gin.Engine, *sdkmetric.ManualReader) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	engine := gin.New()
	engine.Use(middleware.HTTPMetricsWithMeter(provider.Meter("http.server"), true))
	engine.GET("/api/v1/barter/items/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "item payload")
	})
	engine.POST("/api/v1/barter/proposals", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return engine, reader
}

func collectHTTPMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	metrics := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			metrics[m.Name] = m
		}
	}
	return metrics
}

func TestHTTPMetrics_RecordsRequestInstruments(t *testing.T) {
	engine, reader := newMeteredEngine(t)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/barter/items/42", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	metrics := collectHTTPMetrics(t, reader)
	require.Contains(t, metrics, "http_server_request_total")
	require.Contains(t, metrics, "http_server_request_duration_seconds")
	require.Contains(t, metrics, "http_server_response_size_bytes")

	sum, ok := metrics["http_server_request_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)

	dp := sum.DataPoints[0]
	assert.Equal(t, int64(1), dp.Value)

	route, found := dp.Attributes.Value("http.route")
	require.True(t, found)
	assert.Equal(t, "/api/v1/barter/items/:id", route.AsString(),
		"route pattern, not the raw path")

	status, found := dp.Attributes.Value("http.status_code")
	require.True(t, found)
	assert.Equal(t, int64(http.StatusOK), status.AsInt64())
}

func TestHTTPMetrics_RequestBodySizeRecorded(t *testing.T) {
	engine, reader := newMeteredEngine(t)

	body := strings.NewReader(`{"offered_item_id":"a","wanted_category":"books"}`)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/barter/proposals", body))
	require.Equal(t, http.StatusCreated, rec.Code)

	metrics := collectHTTPMetrics(t, reader)
	require.Contains(t, metrics, "http_server_request_size_bytes")

	hist, ok := metrics["http_server_request_size_bytes"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.Greater(t, hist.DataPoints[0].Sum, float64(0))
}

func TestHTTPMetrics_UnmatchedRouteGroupedAsUnknown(t *testing.T) {
	engine, reader := newMeteredEngine(t)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	metrics := collectHTTPMetrics(t, reader)
	sum, ok := metrics["http_server_request_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)

	route, found := sum.DataPoints[0].Attributes.Value("http.route")
	require.True(t, found)
	assert.Equal(t, "unknown", route.AsString())
}

func TestHTTPMetrics_MultipleRequestsAccumulate(t *testing.T) {
	engine, reader := newMeteredEngine(t)

	for range 3 {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/barter/items/7", nil))
	}

	metrics := collectHTTPMetrics(t, reader)
	sum, ok := metrics["http_server_request_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
}

func TestHTTPMetricsWithMeter_DisabledIsPassthrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	engine := gin.New()
	engine.Use(middleware.HTTPMetricsWithMeter(provider.Meter("http.server"), false))
	engine.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.Empty(t, rm.ScopeMetrics)
}

func TestHTTPMetrics_DisabledConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := middleware.DefaultHTTPMetricsConfig()
	cfg.Enabled = false

	engine := gin.New()
	engine.Use(middleware.HTTPMetrics(cfg))
	engine.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
