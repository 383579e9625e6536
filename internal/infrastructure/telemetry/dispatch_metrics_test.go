package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/erp/shipsync/internal/infrastructure/telemetry"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestNewDispatchMetrics_NilMeter(t *testing.T) {
	dm, err := telemetry.NewDispatchMetrics(nil)

	require.Error(t, err)
	assert.Nil(t, dm)
	assert.Equal(t, "NewDispatchMetrics: meter cannot be nil", err.Error())
}

func TestDispatchMetrics_NoopMeter(t *testing.T) {
	dm, err := telemetry.NewDispatchMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	dm.RecordOrder(context.Background(), "cdek", "dispatched")
	dm.RecordRun(context.Background(), "cdek", "SUCCESS", time.Second)
}

func TestDispatchMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	dm, err := telemetry.NewDispatchMetrics(provider.Meter("shipsync"))
	require.NoError(t, err)

	ctx := context.Background()
	dm.RecordOrder(ctx, "cdek", "dispatched")
	dm.RecordOrder(ctx, "cdek", "dispatched")
	dm.RecordOrder(ctx, "cdek", "skipped")
	dm.RecordOrder(ctx, "orderadmin", "failed")
	dm.RecordRun(ctx, "cdek", "PARTIAL", 3*time.Second)

	metrics := collect(t, reader)

	orders := metrics["shipsync_orders_total"]
	assert.Equal(t, int64(2), sumFor(t, orders,
		telemetry.AttrBackend.String("cdek"), telemetry.AttrOutcome.String("dispatched")))
	assert.Equal(t, int64(1), sumFor(t, orders,
		telemetry.AttrBackend.String("cdek"), telemetry.AttrOutcome.String("skipped")))
	assert.Equal(t, int64(1), sumFor(t, orders,
		telemetry.AttrBackend.String("orderadmin"), telemetry.AttrOutcome.String("failed")))

	runs := metrics["shipsync_runs_total"]
	assert.Equal(t, int64(1), sumFor(t, runs,
		telemetry.AttrBackend.String("cdek"), telemetry.AttrStatus.String("PARTIAL")))

	hist, ok := metrics["shipsync_run_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 3.0, hist.DataPoints[0].Sum, 1e-9)

	gauge, ok := metrics["shipsync_last_run_timestamp_seconds"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Positive(t, gauge.DataPoints[0].Value)
}
