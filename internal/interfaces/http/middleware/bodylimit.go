package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/barterloop/backend/internal/interfaces/http/dto"
)

// BodyLimit bounds request body size. A declared Content-Length over
// maxBytes is rejected up front; chunked bodies with no declared
// length are capped by MaxBytesReader, so handlers reading them get an
// error at the limit instead of an unbounded body.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			resp := dto.NewErrorResponseWithRequestID(
				"REQUEST_TOO_LARGE",
				"Request body exceeds maximum allowed size",
				requestIDFromGin(c),
			)
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, resp)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
