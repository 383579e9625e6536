package marketplace

import (
	"errors"
	"strings"
	"time"
)

// WildberriesConfig holds configuration for the Wildberries supplier API
type WildberriesConfig struct {
	// Token is the supplier API key, sent as the raw Authorization header
	Token string
	// APIBaseURL is the base URL of the supplier API, ending with a slash
	APIBaseURL string
	// PageSize is the number of records requested per page
	PageSize int
	// Lookback is how far back open tasks are requested
	Lookback time.Duration
	// RequestsPerSecond limits outgoing requests; zero disables the limit
	RequestsPerSecond float64
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// WildberriesAPIURL is the production API endpoint
	WildberriesAPIURL = "https://suppliers-api.wildberries.ru/api/v2/"

	defaultWildberriesPageSize = 1000
	defaultWildberriesLookback = 14 * 24 * time.Hour
)

// ErrWildberriesConfigMissingToken is returned when no API key is configured
var ErrWildberriesConfigMissingToken = errors.New("wildberries: api token is required")

// NewWildberriesConfig creates a configuration with production defaults
func NewWildberriesConfig(token string) *WildberriesConfig {
	return &WildberriesConfig{
		Token:          token,
		APIBaseURL:     WildberriesAPIURL,
		PageSize:       defaultWildberriesPageSize,
		Lookback:       defaultWildberriesLookback,
		TimeoutSeconds: 30,
	}
}

// Validate validates the configuration and fills in defaults
func (c *WildberriesConfig) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return ErrWildberriesConfigMissingToken
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = WildberriesAPIURL
	}
	if !strings.HasSuffix(c.APIBaseURL, "/") {
		c.APIBaseURL += "/"
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultWildberriesPageSize
	}
	if c.Lookback <= 0 {
		c.Lookback = defaultWildberriesLookback
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
