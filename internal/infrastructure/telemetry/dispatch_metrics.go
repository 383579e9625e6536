package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// DispatchMetrics counts dispatched orders and finished runs.
// It satisfies dispatch.Recorder.
type DispatchMetrics struct {
	ordersTotal *Counter
	runsTotal   *Counter
	runDuration *Histogram
	lastRunAt   *Gauge
	now         func() time.Time
}

// NewDispatchMetrics registers the dispatch instruments on meter.
func NewDispatchMetrics(meter metric.Meter) (*DispatchMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	dm := &DispatchMetrics{now: time.Now}

	var err error
	dm.ordersTotal, err = NewCounter(
		meter,
		"shipsync_orders_total",
		"Consolidated orders handled, by backend and outcome",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	dm.runsTotal, err = NewCounter(
		meter,
		"shipsync_runs_total",
		"Dispatch runs finished, by backend and status",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	dm.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "shipsync_run_duration_seconds",
		Description: "Wall time of a dispatch run",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	dm.lastRunAt, err = NewGauge(
		meter,
		"shipsync_last_run_timestamp_seconds",
		"Unix time the last dispatch run finished",
		"s",
	)
	if err != nil {
		return nil, err
	}

	return dm, nil
}

// RecordOrder counts one consolidated order.
func (dm *DispatchMetrics) RecordOrder(ctx context.Context, backend, outcome string) {
	dm.ordersTotal.Inc(ctx,
		AttrBackend.String(backend),
		AttrOutcome.String(outcome),
	)
}

// RecordRun counts a finished run and its duration.
func (dm *DispatchMetrics) RecordRun(ctx context.Context, backend, status string, duration time.Duration) {
	dm.runsTotal.Inc(ctx,
		AttrBackend.String(backend),
		AttrStatus.String(status),
	)
	dm.runDuration.RecordDuration(ctx, duration, AttrBackend.String(backend))
	dm.lastRunAt.Record(ctx, dm.now().Unix(), AttrBackend.String(backend))
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewDispatchMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
