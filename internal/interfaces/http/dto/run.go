package dto

import (
	"time"

	"github.com/erp/shipsync/internal/application/dispatch"
)

// RunResponse is the API view of a dispatch run
type RunResponse struct {
	ID              string     `json:"id"`
	Backend         string     `json:"backend"`
	Status          string     `json:"status"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationMs      int64      `json:"duration_ms"`
	TotalTasks      int        `json:"total_tasks"`
	EligibleTasks   int        `json:"eligible_tasks"`
	TotalOrders     int        `json:"total_orders"`
	DispatchedCount int        `json:"dispatched_count"`
	SkippedCount    int        `json:"skipped_count"`
	FailedCount     int        `json:"failed_count"`
	SkippedOrderIDs []string   `json:"skipped_order_ids"`
	FailedOrderIDs  []string   `json:"failed_order_ids"`
}

// NewRunResponse converts a run report
func NewRunResponse(r *dispatch.RunReport) RunResponse {
	return RunResponse{
		ID:              r.ID.String(),
		Backend:         r.Backend,
		Status:          string(r.Status),
		Error:           r.Error,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
		DurationMs:      r.Duration().Milliseconds(),
		TotalTasks:      r.TotalTasks,
		EligibleTasks:   r.EligibleTasks,
		TotalOrders:     r.TotalOrders,
		DispatchedCount: r.DispatchedCount,
		SkippedCount:    r.SkippedCount,
		FailedCount:     r.FailedCount,
		SkippedOrderIDs: nonNil(r.SkippedOrderIDs),
		FailedOrderIDs:  nonNil(r.FailedOrderIDs),
	}
}

// NewRunResponses converts run reports, preserving order
func NewRunResponses(reports []*dispatch.RunReport) []RunResponse {
	out := make([]RunResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, NewRunResponse(r))
	}
	return out
}

// ListRunsRequest holds query parameters for listing runs
type ListRunsRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
