package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/barterloop/backend/internal/infrastructure/logger"
	"github.com/barterloop/backend/internal/interfaces/http/dto"
)

// Context keys set by the Identity middleware.
const (
	// UserIDKey is the gin context key holding the caller's user ID.
	UserIDKey = "user_id"
	// UserIDHeader carries the caller identity. Authentication is
	// terminated upstream (gateway), so the backend trusts this header.
	UserIDHeader = "X-User-ID"
)

// Identity extracts the caller's user ID from the X-User-ID header and
// stores it in the gin context and the request context logger. Requests
// without the header pass through; handlers that need an identity use
// RequireIdentity or check GetUserID themselves.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw != "" {
			userID, err := uuid.Parse(raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
					dto.ErrCodeInvalidInput,
					"X-User-ID must be a valid UUID",
				))
				return
			}

			c.Set(UserIDKey, userID.String())

			log := logger.FromContext(c.Request.Context())
			ctx, _ := logger.WithUserID(c.Request.Context(), log, userID.String())
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}

// RequireIdentity rejects requests that did not present a caller identity.
// It must run after Identity.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(
				dto.ErrCodeUnauthorized,
				"caller identity required",
			))
			return
		}
		c.Next()
	}
}

// GetUserID returns the caller's user ID from the gin context, or "" if
// the request carried no identity.
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get(UserIDKey); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}
