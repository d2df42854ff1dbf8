package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubRegistrar struct {
	path string
}

func (s *stubRegistrar) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET(s.path, func(c *gin.Context) {
		c.String(http.StatusOK, s.path)
	})
}

func serve(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter_DefaultVersionPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	NewRouter(engine).Register(&stubRegistrar{path: "/items"}).Setup()

	assert.Equal(t, http.StatusOK, serve(engine, "/api/v1/items").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, "/items").Code)
}

func TestRouter_CustomVersion(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	NewRouter(engine, WithAPIVersion("v2")).
		Register(&stubRegistrar{path: "/items"}).
		Setup()

	assert.Equal(t, http.StatusOK, serve(engine, "/api/v2/items").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, "/api/v1/items").Code)
}

func TestRouter_RegisterChaining(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	NewRouter(engine).
		Register(&stubRegistrar{path: "/discover"}).
		Register(&stubRegistrar{path: "/proposals"}).
		Setup()

	assert.Equal(t, http.StatusOK, serve(engine, "/api/v1/discover").Code)
	assert.Equal(t, http.StatusOK, serve(engine, "/api/v1/proposals").Code)
}
