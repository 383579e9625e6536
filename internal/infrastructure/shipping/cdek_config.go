package shipping

import (
	"errors"
	"strings"
	"time"
)

// CdekConfig holds configuration for the CDEK integration API
type CdekConfig struct {
	// ClientID is the account identifier used for client-credentials auth
	ClientID string
	// ClientSecret is the secure password paired with ClientID
	ClientSecret string
	// APIBaseURL is the base URL of the API, ending with a slash
	APIBaseURL string
	// ShipmentPoint is the code of the pickup point parcels are handed over at
	ShipmentPoint string
	// PackageWeight is the declared parcel weight in grams
	PackageWeight int
	// PackageLength, PackageWidth and PackageHeight are parcel dimensions in centimeters
	PackageLength int
	PackageWidth  int
	PackageHeight int
	// OriginLocationCode is the city code used by the tariff calculator
	OriginLocationCode int
	// DefaultTariff is used when no preferred tariff is available
	DefaultTariff int
	// PreferredTariffs are tried in order against the calculator response
	PreferredTariffs []int
	// StatusPollDelay is how long to wait before reading back a created order
	StatusPollDelay time.Duration
	// RequestsPerSecond limits outgoing requests; zero disables the limit
	RequestsPerSecond float64
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// CdekProductionAPIURL is the production API endpoint
	CdekProductionAPIURL = "https://api.cdek.ru/v2/"
	// CdekSandboxAPIURL is the test environment endpoint
	CdekSandboxAPIURL = "https://api.edu.cdek.ru/v2/"

	// CdekTariffDoorToPickup is the tariff used when the calculator offers nothing better
	CdekTariffDoorToPickup = 11

	defaultCdekOriginLocation = 270
	defaultCdekDimension      = 10
	defaultCdekPollDelay      = time.Second
)

// DefaultCdekPreferredTariffs is the tariff preference order: warehouse-to-warehouse first
var DefaultCdekPreferredTariffs = []int{137, 233}

// Errors for CDEK configuration
var (
	ErrCdekConfigMissingCredentials   = errors.New("cdek: client id and secret are required")
	ErrCdekConfigMissingShipmentPoint = errors.New("cdek: shipment point is required")
	ErrCdekConfigInvalidWeight        = errors.New("cdek: package weight must be positive")
)

// NewCdekConfig creates a configuration with production defaults
func NewCdekConfig(clientID, clientSecret, shipmentPoint string, weight int) *CdekConfig {
	return &CdekConfig{
		ClientID:           clientID,
		ClientSecret:       clientSecret,
		APIBaseURL:         CdekProductionAPIURL,
		ShipmentPoint:      shipmentPoint,
		PackageWeight:      weight,
		PackageLength:      defaultCdekDimension,
		PackageWidth:       defaultCdekDimension,
		PackageHeight:      defaultCdekDimension,
		OriginLocationCode: defaultCdekOriginLocation,
		DefaultTariff:      CdekTariffDoorToPickup,
		PreferredTariffs:   append([]int(nil), DefaultCdekPreferredTariffs...),
		StatusPollDelay:    defaultCdekPollDelay,
		TimeoutSeconds:     30,
	}
}

// Validate validates the configuration and fills in defaults
func (c *CdekConfig) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return ErrCdekConfigMissingCredentials
	}
	if strings.TrimSpace(c.ShipmentPoint) == "" {
		return ErrCdekConfigMissingShipmentPoint
	}
	if c.PackageWeight <= 0 {
		return ErrCdekConfigInvalidWeight
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = CdekProductionAPIURL
	}
	if !strings.HasSuffix(c.APIBaseURL, "/") {
		c.APIBaseURL += "/"
	}
	if c.PackageLength <= 0 {
		c.PackageLength = defaultCdekDimension
	}
	if c.PackageWidth <= 0 {
		c.PackageWidth = defaultCdekDimension
	}
	if c.PackageHeight <= 0 {
		c.PackageHeight = defaultCdekDimension
	}
	if c.OriginLocationCode <= 0 {
		c.OriginLocationCode = defaultCdekOriginLocation
	}
	if c.DefaultTariff <= 0 {
		c.DefaultTariff = CdekTariffDoorToPickup
	}
	if c.PreferredTariffs == nil {
		c.PreferredTariffs = append([]int(nil), DefaultCdekPreferredTariffs...)
	}
	if c.StatusPollDelay < 0 {
		c.StatusPollDelay = defaultCdekPollDelay
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
