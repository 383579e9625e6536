package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/erp/shipsync/internal/application/dispatch"
	"github.com/erp/shipsync/internal/domain/fulfillment"
	"github.com/erp/shipsync/internal/infrastructure/config"
	"github.com/erp/shipsync/internal/infrastructure/ledger"
	"github.com/erp/shipsync/internal/infrastructure/logger"
	"github.com/erp/shipsync/internal/infrastructure/marketplace"
	"github.com/erp/shipsync/internal/infrastructure/shipping"
	"github.com/erp/shipsync/internal/infrastructure/telemetry"
)

const meterName = "github.com/erp/shipsync"

var _ dispatch.Recorder = (*telemetry.DispatchMetrics)(nil)

// app holds the components shared by every command
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	meters *telemetry.MeterProvider
	logs   *telemetry.LoggerProvider
	meter  metric.Meter

	marketplace *marketplace.WildberriesAdapter
	ledger      *ledger.FileLedger
	backend     fulfillment.ShipmentBackend
	service     *dispatch.Service
}

// newApp loads configuration and builds logging and telemetry.
// Remote clients are built separately by connect.
func newApp(ctx context.Context, flags *globalFlags) (*app, error) {
	cfg, err := config.Load(config.Options{
		File:    flags.configFile,
		EnvFile: flags.envFile,
	})
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize logger: %v", fulfillment.ErrConfigInvalid, err)
	}

	a := &app{cfg: cfg, log: log}

	a.meters, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	a.meter = a.meters.Meter(meterName)

	a.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.ExportLogs,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	a.log = a.logs.Bridge(log, zapcore.InfoLevel).With(
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	return a, nil
}

// connect opens the ledger and builds the marketplace client and shipment backend.
// Building the backend authenticates and validates reference data.
func (a *app) connect(ctx context.Context) error {
	var err error

	a.ledger, err = ledger.Open(a.cfg.Ledger.Path, ledger.Options{
		CreateIfMissing: a.cfg.Ledger.CreateIfMissing,
	})
	if err != nil {
		return err
	}
	a.log.Info("Ledger opened",
		zap.String("path", a.ledger.Path()),
		zap.Int("processed", a.ledger.Len()),
	)

	a.marketplace, err = marketplace.NewWildberriesAdapter(wildberriesConfig(a.cfg), a.log)
	if err != nil {
		return fmt.Errorf("%w: %v", fulfillment.ErrConfigInvalid, err)
	}

	if a.cfg.IsCarrier() {
		a.backend, err = shipping.NewCdekAdapter(ctx, cdekConfig(a.cfg), a.log)
	} else {
		a.backend, err = shipping.NewOrderadminAdapter(ctx, orderadminConfig(a.cfg), a.log)
	}
	if err != nil {
		return err
	}
	a.log.Info("Shipment backend ready", zap.String("backend", a.backend.Name()))

	metrics, err := telemetry.NewDispatchMetrics(a.meter)
	if err != nil {
		return err
	}
	a.service = dispatch.NewService(a.marketplace, a.backend, a.ledger, a.log,
		dispatch.WithRecorder(metrics),
	)
	return nil
}

// close flushes telemetry and the logger
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := a.logs.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.meters.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("Telemetry shutdown incomplete", zap.Error(err))
	}
	_ = a.log.Sync()
}

func wildberriesConfig(cfg *config.Config) *marketplace.WildberriesConfig {
	wb := marketplace.NewWildberriesConfig(cfg.Marketplace.Token)
	if cfg.Marketplace.APIBaseURL != "" {
		wb.APIBaseURL = cfg.Marketplace.APIBaseURL
	}
	wb.PageSize = cfg.Marketplace.PageSize
	wb.Lookback = cfg.Marketplace.Lookback
	wb.RequestsPerSecond = cfg.Marketplace.RequestsPerSecond
	wb.TimeoutSeconds = seconds(cfg.Marketplace.Timeout)
	return wb
}

func cdekConfig(cfg *config.Config) *shipping.CdekConfig {
	c := cfg.Carrier
	cdek := shipping.NewCdekConfig(c.ClientID, c.ClientSecret, c.ShipmentPoint, c.PackageWeight)
	if c.APIBaseURL != "" {
		cdek.APIBaseURL = c.APIBaseURL
	}
	cdek.OriginLocationCode = c.OriginLocationCode
	cdek.DefaultTariff = c.DefaultTariff
	cdek.PreferredTariffs = c.PreferredTariffs
	cdek.StatusPollDelay = c.StatusPollDelay
	cdek.RequestsPerSecond = c.RequestsPerSecond
	cdek.TimeoutSeconds = seconds(c.Timeout)
	return cdek
}

func orderadminConfig(cfg *config.Config) *shipping.OrderadminConfig {
	f := cfg.Fulfillment
	oa := shipping.NewOrderadminConfig(f.PublicKey, f.SecretKey, f.ShopID, f.WarehouseID, f.SenderID)
	if f.APIBaseURL != "" {
		oa.APIBaseURL = f.APIBaseURL
	}
	oa.ProductField = f.ProductField
	oa.PageSize = f.PageSize
	oa.MaxWorkers = f.MaxWorkers
	oa.DeliveryServiceID = f.DeliveryServiceID
	oa.RateID = f.RateID
	oa.RequestsPerSecond = f.RequestsPerSecond
	oa.TimeoutSeconds = seconds(f.Timeout)
	return oa
}

// seconds rounds a duration up to whole seconds
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
