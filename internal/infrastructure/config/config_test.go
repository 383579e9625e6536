package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/shipsync/internal/domain/fulfillment"
)

// testEnvKeys lists every variable the tests touch
var testEnvKeys = []string{
	"SHIPSYNC_APP_ENV",
	"SHIPSYNC_LOG_LEVEL",
	"SHIPSYNC_LEDGER_PATH",
	"SHIPSYNC_MARKETPLACE_TOKEN",
	"SHIPSYNC_MARKETPLACE_PAGE_SIZE",
	"SHIPSYNC_DISPATCH_BACKEND",
	"SHIPSYNC_CARRIER_CLIENT_ID",
	"SHIPSYNC_CARRIER_CLIENT_SECRET",
	"SHIPSYNC_CARRIER_SHIPMENT_POINT",
	"SHIPSYNC_FULFILLMENT_PUBLIC_KEY",
	"SHIPSYNC_FULFILLMENT_SECRET_KEY",
	"SHIPSYNC_FULFILLMENT_SHOP_ID",
	"SHIPSYNC_FULFILLMENT_WAREHOUSE_ID",
	"SHIPSYNC_FULFILLMENT_SENDER_ID",
	"SHIPSYNC_SCHEDULER_INTERVAL",
	"SHIPSYNC_SCHEDULER_ENABLED",
}

// clearEnv unsets all test variables for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range testEnvKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func setCarrierEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SHIPSYNC_MARKETPLACE_TOKEN", "wb-token")
	t.Setenv("SHIPSYNC_CARRIER_CLIENT_ID", "client")
	t.Setenv("SHIPSYNC_CARRIER_CLIENT_SECRET", "secret")
	t.Setenv("SHIPSYNC_CARRIER_SHIPMENT_POINT", "MSK123")
}

func TestLoad(t *testing.T) {
	t.Run("loads default values", func(t *testing.T) {
		clearEnv(t)
		setCarrierEnv(t)

		cfg, err := Load(Options{})
		require.NoError(t, err)

		assert.Equal(t, "shipsync", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "console", cfg.Log.Format)
		assert.Equal(t, "data.json", cfg.Ledger.Path)
		assert.False(t, cfg.Ledger.CreateIfMissing)
		assert.Equal(t, 1000, cfg.Marketplace.PageSize)
		assert.Equal(t, 14*24*time.Hour, cfg.Marketplace.Lookback)
		assert.Equal(t, BackendCarrier, cfg.Dispatch.Backend)
		assert.True(t, cfg.IsCarrier())
		assert.Equal(t, 500, cfg.Carrier.PackageWeight)
		assert.Equal(t, 270, cfg.Carrier.OriginLocationCode)
		assert.Equal(t, 11, cfg.Carrier.DefaultTariff)
		assert.Equal(t, []int{137, 233}, cfg.Carrier.PreferredTariffs)
		assert.Equal(t, time.Second, cfg.Carrier.StatusPollDelay)
		assert.Equal(t, 250, cfg.Fulfillment.PageSize)
		assert.Equal(t, 10, cfg.Fulfillment.MaxWorkers)
		assert.Equal(t, 49, cfg.Fulfillment.RateID)
		assert.Equal(t, 15*time.Minute, cfg.Scheduler.Interval)
		assert.True(t, cfg.Scheduler.Enabled)
		assert.True(t, cfg.Scheduler.RunOnStart)
		assert.Equal(t, "shipsync", cfg.Telemetry.ServiceName)
	})

	t.Run("loads values from environment variables with SHIPSYNC prefix", func(t *testing.T) {
		clearEnv(t)
		setCarrierEnv(t)
		t.Setenv("SHIPSYNC_LOG_LEVEL", "debug")
		t.Setenv("SHIPSYNC_LEDGER_PATH", "/var/lib/shipsync/ledger.json")
		t.Setenv("SHIPSYNC_MARKETPLACE_PAGE_SIZE", "500")
		t.Setenv("SHIPSYNC_SCHEDULER_INTERVAL", "5m")
		t.Setenv("SHIPSYNC_SCHEDULER_ENABLED", "false")

		cfg, err := Load(Options{})
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "/var/lib/shipsync/ledger.json", cfg.Ledger.Path)
		assert.Equal(t, 500, cfg.Marketplace.PageSize)
		assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval)
		assert.False(t, cfg.Scheduler.Enabled)
		assert.Equal(t, "MSK123", cfg.Carrier.ShipmentPoint)
	})

	t.Run("requires marketplace token", func(t *testing.T) {
		clearEnv(t)
		setCarrierEnv(t)
		os.Unsetenv("SHIPSYNC_MARKETPLACE_TOKEN")

		_, err := Load(Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, fulfillment.ErrConfigInvalid)
		assert.Contains(t, err.Error(), "Marketplace.Token")
	})

	t.Run("requires carrier credentials", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SHIPSYNC_MARKETPLACE_TOKEN", "wb-token")

		_, err := Load(Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, fulfillment.ErrConfigInvalid)
		assert.Contains(t, err.Error(), "carrier.client_id")
	})

	t.Run("rejects unknown backend", func(t *testing.T) {
		clearEnv(t)
		setCarrierEnv(t)
		t.Setenv("SHIPSYNC_DISPATCH_BACKEND", "pigeon")

		_, err := Load(Options{})
		assert.ErrorIs(t, err, fulfillment.ErrConfigInvalid)
	})

	t.Run("accepts legacy FF mode and requires fulfillment references", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SHIPSYNC_MARKETPLACE_TOKEN", "wb-token")
		t.Setenv("SHIPSYNC_DISPATCH_BACKEND", "FF")
		t.Setenv("SHIPSYNC_FULFILLMENT_PUBLIC_KEY", "pub")
		t.Setenv("SHIPSYNC_FULFILLMENT_SECRET_KEY", "sec")
		t.Setenv("SHIPSYNC_FULFILLMENT_SHOP_ID", "7")
		t.Setenv("SHIPSYNC_FULFILLMENT_WAREHOUSE_ID", "3")

		_, err := Load(Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fulfillment.sender_id")

		t.Setenv("SHIPSYNC_FULFILLMENT_SENDER_ID", "5")
		cfg, err := Load(Options{})
		require.NoError(t, err)
		assert.Equal(t, BackendFulfillment, cfg.Dispatch.Backend)
		assert.False(t, cfg.IsCarrier())
	})
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "shipsync.toml")
	content := `
[ledger]
path = "/tmp/processed.json"
create_if_missing = true

[marketplace]
token = "file-token"
lookback = "72h"

[dispatch]
backend = "carrier"

[carrier]
client_id = "id"
client_secret = "secret"
shipment_point = "SPB1"
package_weight = 750
preferred_tariffs = [233]
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	t.Run("reads explicit file", func(t *testing.T) {
		cfg, err := Load(Options{File: file})
		require.NoError(t, err)

		assert.Equal(t, "/tmp/processed.json", cfg.Ledger.Path)
		assert.True(t, cfg.Ledger.CreateIfMissing)
		assert.Equal(t, "file-token", cfg.Marketplace.Token)
		assert.Equal(t, 72*time.Hour, cfg.Marketplace.Lookback)
		assert.Equal(t, 750, cfg.Carrier.PackageWeight)
		assert.Equal(t, []int{233}, cfg.Carrier.PreferredTariffs)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("SHIPSYNC_CARRIER_SHIPMENT_POINT", "EKB9")

		cfg, err := Load(Options{File: file})
		require.NoError(t, err)
		assert.Equal(t, "EKB9", cfg.Carrier.ShipmentPoint)
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		_, err := Load(Options{File: filepath.Join(dir, "absent.toml")})
		assert.ErrorIs(t, err, fulfillment.ErrConfigInvalid)
	})
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "SHIPSYNC_MARKETPLACE_TOKEN=dotenv-token\n" +
		"SHIPSYNC_CARRIER_CLIENT_ID=client\n" +
		"SHIPSYNC_CARRIER_CLIENT_SECRET=secret\n" +
		"SHIPSYNC_CARRIER_SHIPMENT_POINT=MSK1\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	cfg, err := Load(Options{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "dotenv-token", cfg.Marketplace.Token)

	t.Run("missing explicit env file is an error", func(t *testing.T) {
		_, err := Load(Options{EnvFile: envFile + ".absent"})
		assert.ErrorIs(t, err, fulfillment.ErrConfigInvalid)
	})
}

func TestNormalizeBackend(t *testing.T) {
	tests := map[string]string{
		"":             BackendCarrier,
		"LOGISTICS":    BackendCarrier,
		"carrier":      BackendCarrier,
		"FF":           BackendFulfillment,
		" fulfillment": BackendFulfillment,
		"other":        "other",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeBackend(in), "input %q", in)
	}
}
