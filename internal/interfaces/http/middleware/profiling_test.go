package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barterloop/backend/internal/interfaces/http/middleware"
)

type labelCapture struct {
	labels map[string]string
	seen   bool
}

func (lc *labelCapture) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lc.seen = true
		lc.labels = map[string]string{}
		pprof.ForLabels(c.Request.Context(), func(key, value string) bool {
			lc.labels[key] = value
			return true
		})
		c.Status(http.StatusOK)
	}
}

func newProfiledEngine(cfg middleware.ProfilingConfig, capture *labelCapture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(middleware.ProfilingWithConfig(cfg))
	engine.GET("/health", capture.handler())
	engine.GET("/api/v1/barter/items/:id", capture.handler())
	engine.POST("/api/v1/barter/discover", capture.handler())
	return engine
}

func TestProfiling_LabelsRequestByRoutePattern(t *testing.T) {
	capture := &labelCapture{}
	engine := newProfiledEngine(middleware.DefaultProfilingConfig(), capture)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/barter/items/7f9a31ce", nil))

	require.True(t, capture.seen)
	assert.Equal(t, "GET", capture.labels["method"])
	assert.Equal(t, "/api/v1/barter/items/:id", capture.labels["route"], "pattern, not raw path")
	assert.Equal(t, "barter", capture.labels["controller"])
}

func TestProfiling_SkipsConfiguredPaths(t *testing.T) {
	capture := &labelCapture{}
	engine := newProfiledEngine(middleware.DefaultProfilingConfig(), capture)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.True(t, capture.seen)
	assert.Empty(t, capture.labels, "health probes are not labeled")
}

func TestProfiling_SkipsByPrefix(t *testing.T) {
	capture := &labelCapture{}
	cfg := middleware.ProfilingConfig{
		Enabled:          true,
		SkipPathPrefixes: []string{"/api/v1/barter/items"},
	}
	engine := newProfiledEngine(cfg, capture)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/barter/items/7f9a31ce", nil))

	require.True(t, capture.seen)
	assert.Empty(t, capture.labels)
}

func TestProfiling_DisabledIsPassthrough(t *testing.T) {
	capture := &labelCapture{}
	engine := newProfiledEngine(middleware.ProfilingConfig{Enabled: false}, capture)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/barter/discover", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, capture.labels)
}

func TestProfiling_ContextStillCancelable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(middleware.Profiling())

	var ctxErr error
	engine.GET("/api/v1/barter/discover", func(c *gin.Context) {
		ctx, cancel := context.WithCancel(c.Request.Context())
		cancel()
		ctxErr = ctx.Err()
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/barter/discover", nil))
	assert.ErrorIs(t, ctxErr, context.Canceled)
}
