package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/erp/shipsync/internal/domain/fulfillment"
)

// Backend types
const (
	BackendCarrier     = "carrier"
	BackendFulfillment = "fulfillment"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Log         LogConfig
	Ledger      LedgerConfig
	Marketplace MarketplaceConfig
	Dispatch    DispatchConfig
	Carrier     CarrierConfig
	Fulfillment FulfillmentConfig
	Scheduler   SchedulerConfig
	HTTP        HTTPConfig
	Telemetry   TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `validate:"required"`
	Env  string `validate:"required"`
	Port string `validate:"required,numeric"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn warning error"` // debug, info, warn, error
	Format string `validate:"oneof=json console"`
	Output string `validate:"required"` // stdout, stderr, or file path
}

// LedgerConfig holds the processed-task ledger settings
type LedgerConfig struct {
	Path            string `validate:"required"`
	CreateIfMissing bool
}

// MarketplaceConfig holds Wildberries supplier API settings
type MarketplaceConfig struct {
	Token             string        `validate:"required"`
	APIBaseURL        string        `validate:"omitempty,url"`
	PageSize          int           `validate:"gte=1,lte=1000"`
	Lookback          time.Duration `validate:"gt=0"`
	RequestsPerSecond float64       `validate:"gte=0"`
	Timeout           time.Duration `validate:"gt=0"`
}

// DispatchConfig selects the shipment backend
type DispatchConfig struct {
	Backend string `validate:"oneof=carrier fulfillment"`
}

// CarrierConfig holds CDEK API settings
type CarrierConfig struct {
	ClientID           string
	ClientSecret       string
	APIBaseURL         string `validate:"omitempty,url"`
	ShipmentPoint      string
	PackageWeight      int `validate:"gte=0"` // grams
	OriginLocationCode int `validate:"gte=0"`
	DefaultTariff      int `validate:"gte=0"`
	PreferredTariffs   []int
	StatusPollDelay    time.Duration `validate:"gte=0"`
	RequestsPerSecond  float64       `validate:"gte=0"`
	Timeout            time.Duration `validate:"gt=0"`
}

// FulfillmentConfig holds orderadmin API settings
type FulfillmentConfig struct {
	PublicKey         string
	SecretKey         string
	APIBaseURL        string `validate:"omitempty,url"`
	ShopID            string
	WarehouseID       string
	SenderID          string
	ProductField      string        `validate:"required"`
	PageSize          int           `validate:"gte=1"`
	MaxWorkers        int           `validate:"gte=1,lte=64"`
	DeliveryServiceID int           `validate:"gte=1"`
	RateID            int           `validate:"gte=1"`
	RequestsPerSecond float64       `validate:"gte=0"`
	Timeout           time.Duration `validate:"gt=0"`
}

// SchedulerConfig holds periodic dispatch settings for serve mode
type SchedulerConfig struct {
	Enabled     bool
	Interval    time.Duration `validate:"gte=1s"`
	RunTimeout  time.Duration `validate:"gt=0"`
	HistorySize int           `validate:"gte=1"`
	RunOnStart  bool
}

// HTTPConfig holds status API server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// TelemetryConfig holds OpenTelemetry export configuration
type TelemetryConfig struct {
	Enabled           bool   // Whether to export metrics
	ExportLogs        bool   // Also ship zap logs through the OTLP log bridge
	CollectorEndpoint string // OTEL Collector endpoint (e.g., "localhost:4317")
	ServiceName       string // Service name reported with metrics and logs
	Insecure          bool   // Use insecure (non-TLS) connection (development only)
	ExportInterval    time.Duration
}

// Options controls where configuration is read from
type Options struct {
	// File is an explicit config file; empty searches the default locations
	File string
	// EnvFile is a dotenv file loaded before reading the environment; missing is ignored
	EnvFile string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SHIPSYNC_ prefix (e.g., SHIPSYNC_MARKETPLACE_TOKEN)
// 2. Variables from the dotenv file, applied to the environment without overriding it
// 3. config.toml
// 4. Built-in defaults
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && opts.EnvFile != "" {
		return nil, fmt.Errorf("%w: error reading env file: %v", fulfillment.ErrConfigInvalid, err)
	}

	v := viper.New()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/shipsync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || opts.File != "" {
			return nil, fmt.Errorf("%w: error reading config file: %v", fulfillment.ErrConfigInvalid, err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SHIPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Boolean defaults that differ from the zero value
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.run_on_start", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Ledger: LedgerConfig{
			Path:            v.GetString("ledger.path"),
			CreateIfMissing: v.GetBool("ledger.create_if_missing"),
		},
		Marketplace: MarketplaceConfig{
			Token:             v.GetString("marketplace.token"),
			APIBaseURL:        v.GetString("marketplace.api_base_url"),
			PageSize:          v.GetInt("marketplace.page_size"),
			Lookback:          v.GetDuration("marketplace.lookback"),
			RequestsPerSecond: v.GetFloat64("marketplace.requests_per_second"),
			Timeout:           v.GetDuration("marketplace.timeout"),
		},
		Dispatch: DispatchConfig{
			Backend: v.GetString("dispatch.backend"),
		},
		Carrier: CarrierConfig{
			ClientID:           v.GetString("carrier.client_id"),
			ClientSecret:       v.GetString("carrier.client_secret"),
			APIBaseURL:         v.GetString("carrier.api_base_url"),
			ShipmentPoint:      v.GetString("carrier.shipment_point"),
			PackageWeight:      v.GetInt("carrier.package_weight"),
			OriginLocationCode: v.GetInt("carrier.origin_location_code"),
			DefaultTariff:      v.GetInt("carrier.default_tariff"),
			PreferredTariffs:   v.GetIntSlice("carrier.preferred_tariffs"),
			StatusPollDelay:    v.GetDuration("carrier.status_poll_delay"),
			RequestsPerSecond:  v.GetFloat64("carrier.requests_per_second"),
			Timeout:            v.GetDuration("carrier.timeout"),
		},
		Fulfillment: FulfillmentConfig{
			PublicKey:         v.GetString("fulfillment.public_key"),
			SecretKey:         v.GetString("fulfillment.secret_key"),
			APIBaseURL:        v.GetString("fulfillment.api_base_url"),
			ShopID:            v.GetString("fulfillment.shop_id"),
			WarehouseID:       v.GetString("fulfillment.warehouse_id"),
			SenderID:          v.GetString("fulfillment.sender_id"),
			ProductField:      v.GetString("fulfillment.product_field"),
			PageSize:          v.GetInt("fulfillment.page_size"),
			MaxWorkers:        v.GetInt("fulfillment.max_workers"),
			DeliveryServiceID: v.GetInt("fulfillment.delivery_service_id"),
			RateID:            v.GetInt("fulfillment.rate_id"),
			RequestsPerSecond: v.GetFloat64("fulfillment.requests_per_second"),
			Timeout:           v.GetDuration("fulfillment.timeout"),
		},
		Scheduler: SchedulerConfig{
			Enabled:     v.GetBool("scheduler.enabled"),
			Interval:    v.GetDuration("scheduler.interval"),
			RunTimeout:  v.GetDuration("scheduler.run_timeout"),
			HistorySize: v.GetInt("scheduler.history_size"),
			RunOnStart:  v.GetBool("scheduler.run_on_start"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			ExportLogs:        v.GetBool("telemetry.export_logs"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", fulfillment.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "shipsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "data.json"
	}
	if cfg.Marketplace.PageSize == 0 {
		cfg.Marketplace.PageSize = 1000
	}
	if cfg.Marketplace.Lookback == 0 {
		cfg.Marketplace.Lookback = 14 * 24 * time.Hour
	}
	if cfg.Marketplace.Timeout == 0 {
		cfg.Marketplace.Timeout = 30 * time.Second
	}
	cfg.Dispatch.Backend = normalizeBackend(cfg.Dispatch.Backend)
	if cfg.Carrier.PackageWeight == 0 {
		cfg.Carrier.PackageWeight = 500
	}
	if cfg.Carrier.OriginLocationCode == 0 {
		cfg.Carrier.OriginLocationCode = 270
	}
	if cfg.Carrier.DefaultTariff == 0 {
		cfg.Carrier.DefaultTariff = 11
	}
	if len(cfg.Carrier.PreferredTariffs) == 0 {
		cfg.Carrier.PreferredTariffs = []int{137, 233}
	}
	if cfg.Carrier.StatusPollDelay == 0 {
		cfg.Carrier.StatusPollDelay = time.Second
	}
	if cfg.Carrier.Timeout == 0 {
		cfg.Carrier.Timeout = 30 * time.Second
	}
	if cfg.Fulfillment.ProductField == "" {
		cfg.Fulfillment.ProductField = "barcode"
	}
	if cfg.Fulfillment.PageSize == 0 {
		cfg.Fulfillment.PageSize = 250
	}
	if cfg.Fulfillment.MaxWorkers == 0 {
		cfg.Fulfillment.MaxWorkers = 10
	}
	if cfg.Fulfillment.DeliveryServiceID == 0 {
		cfg.Fulfillment.DeliveryServiceID = 1
	}
	if cfg.Fulfillment.RateID == 0 {
		cfg.Fulfillment.RateID = 49
	}
	if cfg.Fulfillment.Timeout == 0 {
		cfg.Fulfillment.Timeout = 30 * time.Second
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = 15 * time.Minute
	}
	if cfg.Scheduler.RunTimeout == 0 {
		cfg.Scheduler.RunTimeout = 10 * time.Minute
	}
	if cfg.Scheduler.HistorySize == 0 {
		cfg.Scheduler.HistorySize = 50
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "shipsync"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 15 * time.Second
	}
}

// normalizeBackend maps the legacy LOGISTICS / FF mode names onto backend types
func normalizeBackend(backend string) string {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "carrier", "logistics", "cdek":
		return BackendCarrier
	case "fulfillment", "ff", "orderadmin":
		return BackendFulfillment
	default:
		return backend
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("%s failed %q validation (value %v)", e.Namespace(), e.Tag(), e.Value())
		}
		return err
	}

	switch c.Dispatch.Backend {
	case BackendCarrier:
		if c.Carrier.ClientID == "" || c.Carrier.ClientSecret == "" {
			return fmt.Errorf("carrier.client_id and carrier.client_secret are required for the carrier backend")
		}
		if c.Carrier.ShipmentPoint == "" {
			return fmt.Errorf("carrier.shipment_point is required for the carrier backend")
		}
		if c.Carrier.PackageWeight <= 0 {
			return fmt.Errorf("carrier.package_weight must be positive")
		}
	case BackendFulfillment:
		if c.Fulfillment.PublicKey == "" || c.Fulfillment.SecretKey == "" {
			return fmt.Errorf("fulfillment.public_key and fulfillment.secret_key are required for the fulfillment backend")
		}
		if c.Fulfillment.ShopID == "" {
			return fmt.Errorf("fulfillment.shop_id is required for the fulfillment backend")
		}
		if c.Fulfillment.WarehouseID == "" {
			return fmt.Errorf("fulfillment.warehouse_id is required for the fulfillment backend")
		}
		if c.Fulfillment.SenderID == "" {
			return fmt.Errorf("fulfillment.sender_id is required for the fulfillment backend")
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.CollectorEndpoint == "" {
		return fmt.Errorf("telemetry.collector_endpoint is required when telemetry is enabled")
	}

	return nil
}

// IsCarrier reports whether orders go to the CDEK carrier API
func (c *Config) IsCarrier() bool {
	return c.Dispatch.Backend == BackendCarrier
}
