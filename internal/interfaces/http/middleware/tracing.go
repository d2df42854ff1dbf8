package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxRequestIDAttrLen caps request IDs copied from headers into span
// attributes. Anything longer is truncated, not rejected.
const maxRequestIDAttrLen = 128

// TracingConfig configures the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig traces under the backend's service name.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{ServiceName: "barterloop-backend", Enabled: true}
}

// Tracing creates a server span per request via otelgin. Span names
// follow otelgin's "METHOD route_pattern" convention. Pair with
// SpanIdentity, registered later in the chain, to get request and
// user attributes on the span.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig is Tracing with a caller-supplied config.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanIdentity stamps the active server span with request_id and
// user_id. It must sit after Tracing (the span has to exist) and
// ideally after Identity (so the trusted user ID is available; without
// it the X-User-ID header is used, but only when it parses as a UUID,
// keeping junk out of trace storage).
func SpanIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			span.SetAttributes(identityAttributes(c)...)
		}
		c.Next()
	}
}

func identityAttributes(c *gin.Context) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)

	if id := spanRequestID(c); id != "" {
		attrs = append(attrs, attribute.String("request_id", id))
	}
	if userID := spanUserID(c); userID != "" {
		attrs = append(attrs, attribute.String("user_id", userID))
	}
	return attrs
}

func spanRequestID(c *gin.Context) string {
	// The RequestID middleware stores a trusted value in the gin
	// context; prefer it over the raw header.
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	header := c.GetHeader(RequestIDHeader)
	if len(header) > maxRequestIDAttrLen {
		return header[:maxRequestIDAttrLen]
	}
	return header
}

func spanUserID(c *gin.Context) string {
	if userID := GetUserID(c); userID != "" {
		return userID
	}
	header := c.GetHeader(UserIDHeader)
	if header == "" {
		return ""
	}
	if _, err := uuid.Parse(header); err != nil {
		return ""
	}
	return header
}
