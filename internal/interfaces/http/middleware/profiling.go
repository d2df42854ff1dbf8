package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/barterloop/backend/internal/infrastructure/telemetry"
)

// ProfilingConfig controls which requests get profiling labels.
type ProfilingConfig struct {
	Enabled bool
	// SkipPaths lists exact paths excluded from labeling, typically
	// probes that would only add noise to the profile store.
	SkipPaths []string
	// SkipPathPrefixes excludes whole subtrees, such as API docs.
	SkipPathPrefixes []string
}

// DefaultProfilingConfig skips health probes and doc routes.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:          true,
		SkipPaths:        []string{"/health", "/healthz", "/ready", "/metrics"},
		SkipPathPrefixes: []string{"/swagger", "/api-docs"},
	}
}

// Profiling tags each request's CPU samples with method, route pattern
// and controller labels so profiles can be sliced per endpoint in the
// Pyroscope UI. Uses the default skip list.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig is Profiling with a caller-supplied config.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		telemetry.WithProfilingLabels(c.Request.Context(), requestLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// requestLabels builds the label set for one request. Only the route
// pattern is used, never the raw path, so labels stay low-cardinality.
func requestLabels(c *gin.Context) map[string]string {
	labels := map[string]string{
		telemetry.ProfilingLabelMethod: c.Request.Method,
	}
	if route := c.FullPath(); route != "" {
		labels[telemetry.ProfilingLabelRoute] = route
		if controller := controllerSegment(route); controller != "" {
			labels[telemetry.ProfilingLabelController] = controller
		}
	}
	return labels
}

// controllerSegment picks the resource name out of a route pattern:
// "/api/v1/barter/proposals/:id" yields "barter". Version segments and
// path parameters are skipped.
func controllerSegment(route string) string {
	for _, part := range strings.Split(route, "/") {
		switch {
		case part == "", part == "api":
		case isVersionSegment(part):
		case strings.HasPrefix(part, ":"), strings.HasPrefix(part, "*"):
		default:
			return part
		}
	}
	return ""
}

// isVersionSegment reports whether a path segment looks like an API
// version marker such as "v1".
func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
