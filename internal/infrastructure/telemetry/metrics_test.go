package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/shipsync/internal/infrastructure/telemetry"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	cfg := telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    60 * time.Second,
		ServiceName:       "test-service",
	}

	mp, err := telemetry.NewMeterProvider(ctx, cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, mp)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test-meter"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	// Needs a collector listening on localhost:14317
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Second,
		ServiceName:       "test-service",
		Insecure:          true,
	}, logger)
	require.NoError(t, err)
	assert.True(t, mp.IsEnabled())

	_, err = telemetry.NewDispatchMetrics(mp.Meter("test"))
	require.NoError(t, err)

	_ = mp.Shutdown(ctx)
}

func TestMeterProvider_ShutdownCancelledContext(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, mp.Shutdown(ctx))
}
