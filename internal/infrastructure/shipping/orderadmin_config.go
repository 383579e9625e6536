package shipping

import (
	"errors"
	"strings"
)

// OrderadminConfig holds configuration for the orderadmin fulfillment API
type OrderadminConfig struct {
	// PublicKey and SecretKey are the HTTP basic auth credentials
	PublicKey string
	SecretKey string
	// APIBaseURL is the base URL of the API, ending with a slash
	APIBaseURL string
	// ShopID, WarehouseID and SenderID reference existing fulfillment entities
	ShopID      string
	WarehouseID string
	SenderID    string
	// ProductField is the offer attribute holding the marketplace product code
	ProductField string
	// PageSize is the number of offers requested per page
	PageSize int
	// MaxWorkers bounds concurrent page requests while loading offers
	MaxWorkers int
	// DeliveryServiceID and RateID select the last-mile service
	DeliveryServiceID int
	RateID            int
	// RequestsPerSecond limits outgoing requests; zero disables the limit
	RequestsPerSecond float64
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// OrderadminAPIURL is the production API endpoint
	OrderadminAPIURL = "https://cdek.orderadmin.ru/api/"

	defaultOrderadminPageSize        = 250
	defaultOrderadminMaxWorkers      = 10
	defaultOrderadminDeliveryService = 1
	defaultOrderadminRate            = 49
	defaultOrderadminProductField    = "barcode"
)

// Errors for orderadmin configuration
var (
	ErrOrderadminConfigMissingCredentials = errors.New("orderadmin: public and secret keys are required")
	ErrOrderadminConfigMissingShop        = errors.New("orderadmin: shop id is required")
	ErrOrderadminConfigMissingWarehouse   = errors.New("orderadmin: warehouse id is required")
	ErrOrderadminConfigMissingSender      = errors.New("orderadmin: sender id is required")
)

// NewOrderadminConfig creates a configuration with production defaults
func NewOrderadminConfig(publicKey, secretKey, shopID, warehouseID, senderID string) *OrderadminConfig {
	return &OrderadminConfig{
		PublicKey:         publicKey,
		SecretKey:         secretKey,
		APIBaseURL:        OrderadminAPIURL,
		ShopID:            shopID,
		WarehouseID:       warehouseID,
		SenderID:          senderID,
		ProductField:      defaultOrderadminProductField,
		PageSize:          defaultOrderadminPageSize,
		MaxWorkers:        defaultOrderadminMaxWorkers,
		DeliveryServiceID: defaultOrderadminDeliveryService,
		RateID:            defaultOrderadminRate,
		TimeoutSeconds:    30,
	}
}

// Validate validates the configuration and fills in defaults
func (c *OrderadminConfig) Validate() error {
	if strings.TrimSpace(c.PublicKey) == "" || strings.TrimSpace(c.SecretKey) == "" {
		return ErrOrderadminConfigMissingCredentials
	}
	if strings.TrimSpace(c.ShopID) == "" {
		return ErrOrderadminConfigMissingShop
	}
	if strings.TrimSpace(c.WarehouseID) == "" {
		return ErrOrderadminConfigMissingWarehouse
	}
	if strings.TrimSpace(c.SenderID) == "" {
		return ErrOrderadminConfigMissingSender
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = OrderadminAPIURL
	}
	if !strings.HasSuffix(c.APIBaseURL, "/") {
		c.APIBaseURL += "/"
	}
	if c.ProductField == "" {
		c.ProductField = defaultOrderadminProductField
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultOrderadminPageSize
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = defaultOrderadminMaxWorkers
	}
	if c.DeliveryServiceID <= 0 {
		c.DeliveryServiceID = defaultOrderadminDeliveryService
	}
	if c.RateID <= 0 {
		c.RateID = defaultOrderadminRate
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
