// Package scheduler runs dispatch cycles on an interval and on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/erp/shipsync/internal/application/dispatch"
	"github.com/erp/shipsync/internal/domain/fulfillment"
	"github.com/erp/shipsync/internal/infrastructure/logger"
)

// Run triggers
const (
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
	TriggerAPI      = "api"
)

// ---------------------------------------------------------------------------
// DispatchSchedulerConfig
// ---------------------------------------------------------------------------

// DispatchSchedulerConfig holds configuration for the dispatch scheduler
type DispatchSchedulerConfig struct {
	// Interval between scheduled runs
	Interval time.Duration

	// RunTimeout bounds a single run
	RunTimeout time.Duration

	// HistorySize is how many finished runs are kept in memory
	HistorySize int

	// RunOnStart runs one cycle immediately after Start
	RunOnStart bool

	// ManualOnly disables the ticker; runs happen only through Trigger and RunNow
	ManualOnly bool
}

// DefaultDispatchSchedulerConfig returns default configuration
func DefaultDispatchSchedulerConfig() DispatchSchedulerConfig {
	return DispatchSchedulerConfig{
		Interval:    15 * time.Minute,
		RunTimeout:  10 * time.Minute,
		HistorySize: 50,
		RunOnStart:  true,
	}
}

// Validate validates the configuration
func (c DispatchSchedulerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("%w: run timeout must be positive", ErrInvalidConfig)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("%w: history size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ---------------------------------------------------------------------------
// DispatchScheduler
// ---------------------------------------------------------------------------

// Runner executes one dispatch cycle
type Runner interface {
	Run(ctx context.Context) (*dispatch.RunReport, error)
}

// DispatchScheduler runs dispatch cycles periodically and on demand.
// At most one cycle is active at a time; a fatal cycle error halts the scheduler.
type DispatchScheduler struct {
	config DispatchSchedulerConfig
	runner Runner
	logger *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	active atomic.Bool

	haltOnce sync.Once
	halted   chan struct{}
	fatalErr error

	historyMu sync.RWMutex
	history   []*dispatch.RunReport
}

// NewDispatchScheduler creates a new dispatch scheduler
func NewDispatchScheduler(config DispatchSchedulerConfig, runner Runner, logger *zap.Logger) (*DispatchScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &DispatchScheduler{
		config:  config,
		runner:  runner,
		logger:  logger,
		halted:  make(chan struct{}),
		history: make([]*dispatch.RunReport, 0, config.HistorySize),
	}, nil
}

// Start starts the interval loop
func (s *DispatchScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if s.Err() != nil {
		return ErrSchedulerHalted
	}
	s.isRunning = true

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop(s.ctx)

	s.logger.Info("Dispatch scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("run_timeout", s.config.RunTimeout),
		zap.Bool("run_on_start", s.config.RunOnStart),
		zap.Bool("manual_only", s.config.ManualOnly),
	)
	return nil
}

// Stop cancels the loop and any active run, then waits for them to finish
func (s *DispatchScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Dispatch scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Dispatch scheduler stop timed out")
		return ctx.Err()
	}
}

// loop runs a cycle on every tick
func (s *DispatchScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.tick(ctx, TriggerStartup)
	}
	if s.config.ManualOnly {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, TriggerSchedule)
		}
	}
}

func (s *DispatchScheduler) tick(ctx context.Context, trigger string) {
	if _, err := s.RunNow(ctx, trigger); errors.Is(err, ErrRunInProgress) {
		s.logger.Warn("Skipping scheduled dispatch run, previous run still active",
			zap.String("trigger", trigger),
		)
	}
}

// Trigger starts a run in the background and returns immediately
func (s *DispatchScheduler) Trigger(trigger string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err() != nil {
		return ErrSchedulerHalted
	}
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	if !s.active.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}

	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.active.Store(false)
		_, _ = s.execute(ctx, trigger)
	}()
	return nil
}

// RunNow runs one cycle synchronously
func (s *DispatchScheduler) RunNow(ctx context.Context, trigger string) (*dispatch.RunReport, error) {
	if s.Err() != nil {
		return nil, ErrSchedulerHalted
	}
	if !s.active.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.active.Store(false)

	return s.execute(ctx, trigger)
}

// execute runs the cycle and records its report. The caller holds the active flag.
func (s *DispatchScheduler) execute(ctx context.Context, trigger string) (*dispatch.RunReport, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()
	runCtx, log := logger.WithTrigger(runCtx, s.logger, trigger)

	report, err := s.runner.Run(runCtx)
	if report != nil {
		s.addToHistory(report)
	}

	if err != nil {
		log.Error("Dispatch run failed", zap.Error(err))
		if fulfillment.IsFatal(err) {
			s.halt(err)
		}
	}
	return report, err
}

// halt records the fatal error and stops scheduling further runs
func (s *DispatchScheduler) halt(err error) {
	s.haltOnce.Do(func() {
		s.mu.Lock()
		s.fatalErr = err
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()

		close(s.halted)
		s.logger.Error("Dispatch scheduler halted", zap.Error(err))
	})
}

// Halted is closed once a fatal error stops the scheduler
func (s *DispatchScheduler) Halted() <-chan struct{} {
	return s.halted
}

// Err returns the fatal error that halted the scheduler, if any
func (s *DispatchScheduler) Err() error {
	select {
	case <-s.halted:
		return s.fatalErr
	default:
		return nil
	}
}

// Running reports whether a run is active
func (s *DispatchScheduler) Running() bool {
	return s.active.Load()
}

// addToHistory adds a finished run to history
func (s *DispatchScheduler) addToHistory(report *dispatch.RunReport) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*dispatch.RunReport{report}, s.history...)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}
}

// History returns the most recent runs, newest first
func (s *DispatchScheduler) History(limit int) []*dispatch.RunReport {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}

	result := make([]*dispatch.RunReport, limit)
	copy(result, s.history[:limit])
	return result
}

// Latest returns the most recent finished run, or nil
func (s *DispatchScheduler) Latest() *dispatch.RunReport {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if len(s.history) == 0 {
		return nil
	}
	return s.history[0]
}
