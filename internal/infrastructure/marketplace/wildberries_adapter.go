// Package marketplace contains adapters for the marketplaces that own assembly tasks.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/shipsync/internal/domain/fulfillment"
)

// maxResponseSize is the maximum allowed response size from the supplier API (10MB)
const maxResponseSize = 10 * 1024 * 1024

var (
	// ErrWildberriesRequestFailed indicates a non-success HTTP response
	ErrWildberriesRequestFailed = errors.New("wildberries: request failed")
	// ErrWildberriesInvalidResponse indicates a response body that could not be decoded
	ErrWildberriesInvalidResponse = errors.New("wildberries: invalid response")
	// ErrWildberriesUnavailable indicates a transport failure
	ErrWildberriesUnavailable = errors.New("wildberries: api unavailable")
)

// WildberriesAdapter implements fulfillment.MarketplaceGateway for the Wildberries supplier API
type WildberriesAdapter struct {
	config     *WildberriesConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time
}

// NewWildberriesAdapter creates a new adapter with the given configuration
func NewWildberriesAdapter(config *WildberriesConfig, logger *zap.Logger) (*WildberriesAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", fulfillment.ErrConfigInvalid, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &WildberriesAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("wildberries"),
		now:     time.Now,
	}, nil
}

// ---------------------------------------------------------------------------
// Task Operations
// ---------------------------------------------------------------------------

// FetchOpenTasks returns all new tasks created within the lookback window
func (a *WildberriesAdapter) FetchOpenTasks(ctx context.Context) ([]fulfillment.Task, error) {
	dateStart := a.now().UTC().Add(-a.config.Lookback).Format(time.RFC3339)
	tasks := make([]fulfillment.Task, 0)

	for skip := 0; ; {
		params := url.Values{}
		params.Set("date_start", dateStart)
		params.Set("status", strconv.Itoa(int(fulfillment.TaskStatusNew)))
		params.Set("take", strconv.Itoa(a.config.PageSize))
		params.Set("skip", strconv.Itoa(skip))

		var resp WildberriesOrdersResponse
		if err := a.doRequest(ctx, http.MethodGet, "orders", params, nil, &resp); err != nil {
			return nil, err
		}

		for i := range resp.Orders {
			tasks = append(tasks, convertWildberriesOrder(&resp.Orders[i]))
		}

		skip += len(resp.Orders)
		if len(resp.Orders) < a.config.PageSize || skip >= resp.Total {
			break
		}
	}

	a.logger.Debug("Fetched open tasks", zap.Int("count", len(tasks)))
	return tasks, nil
}

// FetchProductCatalog returns product cards keyed by barcode
func (a *WildberriesAdapter) FetchProductCatalog(ctx context.Context) (fulfillment.ProductCatalog, error) {
	catalog := make(fulfillment.ProductCatalog)

	for skip := 0; ; {
		params := url.Values{}
		params.Set("take", strconv.Itoa(a.config.PageSize))
		params.Set("skip", strconv.Itoa(skip))

		var resp WildberriesStocksResponse
		if err := a.doRequest(ctx, http.MethodGet, "stocks", params, nil, &resp); err != nil {
			return nil, err
		}

		for _, stock := range resp.Stocks {
			code := fulfillment.ProductCode(stock.Barcode)
			catalog[code] = fulfillment.ProductMeta{Code: code, Name: stock.Name}
		}

		skip += len(resp.Stocks)
		if len(resp.Stocks) < a.config.PageSize || skip >= resp.Total {
			break
		}
	}

	a.logger.Debug("Fetched product catalog", zap.Int("products", len(catalog)))
	return catalog, nil
}

// UpdateTaskStatus sets the seller-side status of one task
func (a *WildberriesAdapter) UpdateTaskStatus(ctx context.Context, id fulfillment.TaskID, status fulfillment.TaskStatus) error {
	body := []WildberriesStatusUpdate{{
		OrderID: id.String(),
		Status:  int(status),
	}}
	return a.doRequest(ctx, http.MethodPut, "orders", nil, body, nil)
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an HTTP request to the supplier API and decodes the JSON response into out
func (a *WildberriesAdapter) doRequest(ctx context.Context, method, path string, params url.Values, body, out any) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrWildberriesUnavailable, err)
	}

	endpoint := a.config.APIBaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("wildberries: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("wildberries: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", a.config.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWildberriesUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("wildberries: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: wildberries rejected the api token", fulfillment.ErrAuthFailed)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s %s: HTTP %d: %s", ErrWildberriesRequestFailed, method, path, resp.StatusCode, snippet(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrWildberriesInvalidResponse, method, path, err)
	}
	return nil
}

// convertWildberriesOrder converts a supplier API order to a fulfillment task.
// Prices arrive in kopecks.
func convertWildberriesOrder(o *WildberriesOrder) fulfillment.Task {
	task := fulfillment.Task{
		ID:          fulfillment.TaskID(o.OrderID),
		OrderID:     fulfillment.OrderID(o.OrderUID),
		ProductCode: fulfillment.ProductCode(o.Barcode),
		UnitPrice:   decimal.New(o.TotalPrice, -2),
		Recipient: fulfillment.Recipient{
			Name:  o.UserInfo.Fio,
			Phone: string(o.UserInfo.Phone),
		},
		Address: fulfillment.Address{
			Region:    o.DeliveryAddressDetails.Province,
			City:      o.DeliveryAddressDetails.City,
			Street:    o.DeliveryAddressDetails.Street,
			House:     o.DeliveryAddressDetails.Home,
			Apartment: o.DeliveryAddressDetails.Flat,
			Line:      o.DeliveryAddress,
			Latitude:  o.DeliveryAddressDetails.Latitude,
			Longitude: o.DeliveryAddressDetails.Longitude,
		},
		DeliveryType: fulfillment.DeliveryType(o.DeliveryType),
		UserStatus:   fulfillment.UserStatus(o.UserStatus),
		Status:       fulfillment.TaskStatus(o.Status),
	}

	if o.DateCreated != "" {
		if t, err := time.Parse(time.RFC3339, o.DateCreated); err == nil {
			task.CreatedAt = t
		}
	}

	return task
}

// snippet shortens a response body for error messages
func snippet(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// Ensure WildberriesAdapter implements MarketplaceGateway interface
var _ fulfillment.MarketplaceGateway = (*WildberriesAdapter)(nil)
