// Package dispatch drives one cycle of the marketplace to shipment pipeline:
// fetch open tasks, group them into orders, create shipments and record the
// dispatched tasks in the ledger.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/shipsync/internal/domain/fulfillment"
)

// Recorder receives dispatch measurements
type Recorder interface {
	RecordOrder(ctx context.Context, backend, outcome string)
	RecordRun(ctx context.Context, backend, status string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordOrder(context.Context, string, string)              {}
func (nopRecorder) RecordRun(context.Context, string, string, time.Duration) {}

// Option configures a Service
type Option func(*Service)

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// Service dispatches marketplace orders to a shipment backend
type Service struct {
	marketplace fulfillment.MarketplaceGateway
	backend     fulfillment.ShipmentBackend
	ledger      fulfillment.Ledger
	logger      *zap.Logger
	recorder    Recorder
}

// NewService creates a new dispatch service
func NewService(
	marketplace fulfillment.MarketplaceGateway,
	backend fulfillment.ShipmentBackend,
	ledger fulfillment.Ledger,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		marketplace: marketplace,
		backend:     backend,
		ledger:      ledger,
		logger:      logger,
		recorder:    nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the name of the shipment backend
func (s *Service) Backend() string {
	return s.backend.Name()
}

// Run executes one dispatch cycle.
// The report is always returned; the error is non-nil when the run was aborted.
func (s *Service) Run(ctx context.Context) (*RunReport, error) {
	report := NewRunReport(s.backend.Name())
	log := s.logger.With(zap.String("run_id", report.ID.String()), zap.String("backend", report.Backend))
	log.Info("Dispatch run started")

	err := s.run(ctx, log, report)
	if err != nil {
		report.Fail(err.Error())
		log.Error("Dispatch run aborted",
			zap.Int("dispatched", report.DispatchedCount),
			zap.Int("skipped", report.SkippedCount),
			zap.Int("failed", report.FailedCount),
			zap.Error(err))
	} else {
		report.Complete()
		log.Info("Dispatch run completed",
			zap.String("status", string(report.Status)),
			zap.Int("orders", report.TotalOrders),
			zap.Int("dispatched", report.DispatchedCount),
			zap.Int("skipped", report.SkippedCount),
			zap.Int("failed", report.FailedCount),
			zap.Duration("duration", report.Duration()))
	}

	s.recorder.RecordRun(context.WithoutCancel(ctx), report.Backend, string(report.Status), report.Duration())
	return report, err
}

func (s *Service) run(ctx context.Context, log *zap.Logger, report *RunReport) error {
	tasks, err := s.marketplace.FetchOpenTasks(ctx)
	if err != nil {
		return fmt.Errorf("fetch open tasks: %w", err)
	}
	eligible := fulfillment.FilterDispatchable(tasks)
	groups := fulfillment.Aggregate(eligible)

	report.TotalTasks = len(tasks)
	report.EligibleTasks = len(eligible)
	report.TotalOrders = len(groups)
	log.Info("Fetched tasks",
		zap.Int("tasks", len(tasks)),
		zap.Int("eligible_tasks", len(eligible)),
		zap.Int("orders", len(groups)))

	if len(groups) == 0 {
		return nil
	}

	catalog, err := s.marketplace.FetchProductCatalog(ctx)
	if err != nil {
		return fmt.Errorf("fetch product catalog: %w", err)
	}
	if refresher, ok := s.backend.(fulfillment.CatalogRefresher); ok {
		if err := refresher.RefreshCatalog(ctx); err != nil {
			return fmt.Errorf("refresh backend catalog: %w", err)
		}
	}

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, err := s.dispatchGroup(ctx, log, group, catalog)
		report.Record(group.OrderID.String(), outcome)
		s.recorder.RecordOrder(ctx, report.Backend, string(outcome))
		if err != nil {
			return err
		}
	}
	return nil
}

// dispatchGroup handles one order. Business failures are reported through the
// outcome; the error is reserved for conditions that must stop the run.
func (s *Service) dispatchGroup(ctx context.Context, log *zap.Logger, group fulfillment.OrderGroup, catalog fulfillment.ProductCatalog) (OrderOutcome, error) {
	ids := group.TaskIDs()
	log = log.With(
		zap.String("order_id", group.OrderID.String()),
		zap.Strings("task_ids", taskIDStrings(ids)))

	if processed, ok := fulfillment.AnyProcessed(s.ledger, ids); ok {
		log.Warn("Order already processed, skipping; its tasks may need a manual status change in the marketplace",
			zap.String("processed_task_id", processed.String()))
		return OutcomeSkipped, nil
	}

	log.Info("Dispatching order")
	order, err := fulfillment.BuildConsolidated(group, catalog)
	if err != nil {
		log.Error("Failed to build order", zap.Error(err))
		return OutcomeFailed, nil
	}

	ok, err := s.backend.CreateOrder(ctx, order)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("create order %s: %w", group.OrderID, err)
	}
	if !ok {
		log.Warn("Order was not created")
		return OutcomeFailed, nil
	}

	// The shipment exists from here on, so the remaining steps must not be
	// interrupted by cancellation of the run.
	ctx = context.WithoutCancel(ctx)

	var authErr error
	for _, id := range ids {
		if err := s.marketplace.UpdateTaskStatus(ctx, id, fulfillment.TaskStatusAssembling); err != nil {
			log.Error("Failed to update task status", zap.String("task_id", id.String()), zap.Error(err))
			if authErr == nil && errors.Is(err, fulfillment.ErrAuthFailed) {
				authErr = err
			}
		}
	}

	if err := s.ledger.MarkProcessed(ctx, ids); err != nil {
		return OutcomeDispatched, fmt.Errorf("record order %s: %w", group.OrderID, err)
	}
	if authErr != nil {
		return OutcomeDispatched, fmt.Errorf("update status of order %s: %w", group.OrderID, authErr)
	}
	return OutcomeDispatched, nil
}

func taskIDStrings(ids []fulfillment.TaskID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
