package middleware_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barterloop/backend/internal/interfaces/http/dto"
	"github.com/barterloop/backend/internal/interfaces/http/middleware"
)

type createListingPayload struct {
	Name     string `json:"name" binding:"required,min=3,max=200"`
	Category string `json:"category" binding:"required"`
	Kind     string `json:"kind" binding:"omitempty,oneof=GOODS SERVICE"`
}

func newValidationEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()

	engine := gin.New()
	engine.POST("/items", func(c *gin.Context) {
		var payload createListingPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusCreated)
	})
	return engine
}

func postJSON(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestHandleValidationError_ReportsJSONFieldNames(t *testing.T) {
	engine := newValidationEngine()

	rec := postJSON(engine, `{"category":"books"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.False(t, resp.Success)

	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "name", resp.Error.Details[0].Field, "json tag name, not Go field name")
	assert.Equal(t, "This field is required", resp.Error.Details[0].Message)
}

func TestHandleValidationError_MultipleFailures(t *testing.T) {
	engine := newValidationEngine()

	rec := postJSON(engine, `{"name":"ab","category":"books","kind":"MAGIC"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)

	byField := map[string]string{}
	for _, d := range resp.Error.Details {
		byField[d.Field] = d.Message
	}
	assert.Equal(t, "Must be at least 3 characters", byField["name"])
	assert.Equal(t, "Must be one of: GOODS SERVICE", byField["kind"])
}

func TestFormatValidationErrors_NonValidatorError(t *testing.T) {
	resp := middleware.FormatValidationErrors(errors.New("unexpected EOF"), "req-7")

	require.NotNil(t, resp.Error)
	assert.Empty(t, resp.Error.Details)
	assert.Equal(t, "req-7", resp.Error.RequestID)
	assert.Equal(t, "Request validation failed", resp.Error.Message)
}
