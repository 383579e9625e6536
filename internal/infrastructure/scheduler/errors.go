package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when triggering a run on a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrRunInProgress is returned when a dispatch run is already active
	ErrRunInProgress = errors.New("dispatch run already in progress")

	// ErrSchedulerHalted is returned after a fatal run error stopped the scheduler
	ErrSchedulerHalted = errors.New("scheduler halted after a fatal error")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
