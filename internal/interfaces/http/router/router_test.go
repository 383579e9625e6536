package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/shipsync/internal/infrastructure/logger"
	"github.com/erp/shipsync/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pingRoutes struct {
	path string
}

func (p pingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET(p.path, func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
}

func TestNewRouter(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
	assert.Empty(t, r.root)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	NewRouter(engine).
		Register(pingRoutes{path: "/ping"}).
		RegisterRoot(pingRoutes{path: "/health"}).
		Setup()

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/ping", http.StatusOK},
		{"/health", http.StatusOK},
		{"/ping", http.StatusNotFound},
		{"/api/v1/health", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestNewEngine(t *testing.T) {
	engine := NewEngine(EngineConfig{
		Logger:   zap.NewNop(),
		Security: middleware.DefaultSecurityConfig(),
	})
	NewRouter(engine).RegisterRoot(pingRoutes{path: "/health"}).Setup()

	t.Run("installs request id and security headers", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	})

	t.Run("recovers from panics", func(t *testing.T) {
		engine.GET("/boom", func(*gin.Context) { panic("boom") })

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("rejects wrong method", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/health", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
