package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the state of a dispatch run
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusPartial RunStatus = "PARTIAL"
	RunStatusFailed  RunStatus = "FAILED"
)

// OrderOutcome is the result of handling one consolidated order
type OrderOutcome string

const (
	OutcomeDispatched OrderOutcome = "dispatched"
	OutcomeSkipped    OrderOutcome = "skipped"
	OutcomeFailed     OrderOutcome = "failed"
)

// RunReport summarises one dispatch cycle
type RunReport struct {
	ID          uuid.UUID
	Backend     string
	Status      RunStatus
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time

	TotalTasks    int
	EligibleTasks int
	TotalOrders   int

	DispatchedCount int
	SkippedCount    int
	FailedCount     int
	SkippedOrderIDs []string
	FailedOrderIDs  []string
}

// NewRunReport creates a running report for the given backend
func NewRunReport(backend string) *RunReport {
	return &RunReport{
		ID:              uuid.New(),
		Backend:         backend,
		Status:          RunStatusRunning,
		StartedAt:       time.Now(),
		SkippedOrderIDs: make([]string, 0),
		FailedOrderIDs:  make([]string, 0),
	}
}

// Record counts the outcome of one order
func (r *RunReport) Record(orderID string, outcome OrderOutcome) {
	switch outcome {
	case OutcomeDispatched:
		r.DispatchedCount++
	case OutcomeSkipped:
		r.SkippedCount++
		r.SkippedOrderIDs = append(r.SkippedOrderIDs, orderID)
	case OutcomeFailed:
		r.FailedCount++
		r.FailedOrderIDs = append(r.FailedOrderIDs, orderID)
	}
}

// Complete marks the run as finished without a fatal error
func (r *RunReport) Complete() {
	now := time.Now()
	r.CompletedAt = &now

	if r.FailedCount == 0 {
		r.Status = RunStatusSuccess
	} else if r.DispatchedCount > 0 {
		r.Status = RunStatusPartial
	} else {
		r.Status = RunStatusFailed
	}
}

// Fail marks the run as aborted
func (r *RunReport) Fail(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.CompletedAt = &now
	r.Error = err
}

// Duration returns how long the run took, or has taken so far
func (r *RunReport) Duration() time.Duration {
	if r.CompletedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Finished reports whether the run has completed or failed
func (r *RunReport) Finished() bool {
	return r.CompletedAt != nil
}
