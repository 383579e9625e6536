package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erp/shipsync/internal/interfaces/http/dto"
)

// HealthChecker reports whether the scheduler can still dispatch
type HealthChecker interface {
	Err() error
	Running() bool
}

// SystemHandler serves the health endpoint
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	version   string
	backend   string
	health    HealthChecker
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(version, backend string, health HealthChecker) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		version:   version,
		backend:   backend,
		health:    health,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Backend   string `json:"backend"`
	RunActive bool   `json:"run_active"`
	Error     string `json:"error,omitempty"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	CheckedAt string `json:"checked_at"`
}

// RegisterRoutes registers the health endpoint
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
}

// Health returns 200 while the scheduler can dispatch and 503 once it halted
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Backend:   h.backend,
		RunActive: h.health.Running(),
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}

	status := http.StatusOK
	if err := h.health.Err(); err != nil {
		resp.Status = "halted"
		resp.Error = err.Error()
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, dto.NewSuccessResponse(resp))
}
