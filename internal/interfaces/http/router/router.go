// Package router assembles the gin engine for the status API.
package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/erp/shipsync/internal/infrastructure/logger"
	"github.com/erp/shipsync/internal/interfaces/http/middleware"
)

// DefaultMaxBodySize caps request bodies on the status API
const DefaultMaxBodySize int64 = 64 << 10

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
	root       []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
		root:       make([]RouteRegistrar, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a RouteRegistrar mounted under the versioned API group
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// RegisterRoot adds a RouteRegistrar mounted at the engine root (health probes)
func (r *Router) RegisterRoot(registrar RouteRegistrar) *Router {
	r.root = append(r.root, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	for _, registrar := range r.root {
		registrar.RegisterRoutes(&r.engine.RouterGroup)
	}

	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// EngineConfig configures the middleware chain
type EngineConfig struct {
	Logger      *zap.Logger
	Meter       metric.Meter
	MaxBodySize int64
	Security    middleware.SecurityConfig
}

// NewEngine creates a gin engine with recovery, request logging, security headers,
// HTTP metrics and a body size limit installed in that order
func NewEngine(cfg EngineConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}

	engine := gin.New()
	engine.Use(
		logger.Recovery(cfg.Logger),
		logger.GinMiddleware(cfg.Logger),
		middleware.SecureWithConfig(cfg.Security),
		middleware.HTTPMetrics(cfg.Meter),
		middleware.BodyLimit(cfg.MaxBodySize),
	)
	engine.HandleMethodNotAllowed = true
	return engine
}
