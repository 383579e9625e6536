package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/shipsync/internal/application/dispatch"
	"github.com/erp/shipsync/internal/infrastructure/logger"
	"github.com/erp/shipsync/internal/infrastructure/scheduler"
	"github.com/erp/shipsync/internal/interfaces/http/dto"
)

const defaultRunsLimit = 20

// RunController is the part of the scheduler the dispatch endpoints drive
type RunController interface {
	Trigger(trigger string) error
	History(limit int) []*dispatch.RunReport
	Latest() *dispatch.RunReport
	Running() bool
}

// DispatchHandler exposes dispatch runs over HTTP
type DispatchHandler struct {
	BaseHandler
	runs RunController
}

// NewDispatchHandler creates a new DispatchHandler
func NewDispatchHandler(runs RunController) *DispatchHandler {
	return &DispatchHandler{runs: runs}
}

// RegisterRoutes registers dispatch routes under /dispatch
func (h *DispatchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	runs := rg.Group("/dispatch/runs")
	runs.GET("", h.ListRuns)
	runs.GET("/latest", h.LatestRun)
	runs.POST("", h.TriggerRun)
}

// ListRuns returns recent runs, newest first
func (h *DispatchHandler) ListRuns(c *gin.Context) {
	var req dto.ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "limit must be between 1 and 100")
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultRunsLimit
	}

	h.Success(c, dto.NewRunResponses(h.runs.History(req.Limit)))
}

// LatestRun returns the most recent finished run
func (h *DispatchHandler) LatestRun(c *gin.Context) {
	latest := h.runs.Latest()
	if latest == nil {
		h.NotFound(c, "no dispatch run has finished yet")
		return
	}
	h.Success(c, dto.NewRunResponse(latest))
}

// TriggerRunResponse acknowledges a started run
type TriggerRunResponse struct {
	Message string `json:"message"`
}

// TriggerRun starts a run in the background
func (h *DispatchHandler) TriggerRun(c *gin.Context) {
	err := h.runs.Trigger(scheduler.TriggerAPI)
	switch {
	case err == nil:
		logger.GetGinLogger(c).Info("Dispatch run triggered")
		h.Accepted(c, TriggerRunResponse{Message: "dispatch run started"})
	case errors.Is(err, scheduler.ErrRunInProgress):
		h.ErrorWithCode(c, dto.ErrCodeRunInProgress, "a dispatch run is already in progress")
	case errors.Is(err, scheduler.ErrSchedulerHalted), errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.ErrorWithCode(c, dto.ErrCodeUnavailable, err.Error())
	default:
		logger.GetGinLogger(c).Error("Failed to trigger dispatch run", zap.Error(err))
		h.ErrorWithCode(c, dto.ErrCodeInternal, "failed to trigger dispatch run")
	}
}
