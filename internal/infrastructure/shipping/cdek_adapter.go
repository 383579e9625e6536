// Package shipping contains the shipment backends orders are dispatched to:
// the CDEK carrier API and the orderadmin fulfillment API.
package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/shipsync/internal/domain/fulfillment"
)

// maxResponseSize is the maximum allowed response size from a backend API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// cdekOrderNumberLimit is the maximum length of the client order number
const cdekOrderNumberLimit = 40

// BackendCdek is the name reported by CdekAdapter
const BackendCdek = "cdek"

var (
	// ErrCdekRequestFailed indicates a non-success HTTP response
	ErrCdekRequestFailed = errors.New("cdek: request failed")
	// ErrCdekInvalidResponse indicates a response body that could not be decoded
	ErrCdekInvalidResponse = errors.New("cdek: invalid response")
	// ErrCdekUnavailable indicates a transport failure
	ErrCdekUnavailable = errors.New("cdek: api unavailable")
)

// CdekAdapter implements fulfillment.ShipmentBackend on top of the CDEK carrier API
type CdekAdapter struct {
	config     *CdekConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewCdekAdapter creates the adapter and obtains an access token.
// Invalid configuration yields fulfillment.ErrConfigInvalid, rejected
// credentials yield fulfillment.ErrAuthFailed.
func NewCdekAdapter(ctx context.Context, config *CdekConfig, logger *zap.Logger) (*CdekAdapter, error) {
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

	a := &CdekAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named(BackendCdek),
		now:     time.Now,
	}

	if _, err := a.accessToken(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Name returns the backend name
func (a *CdekAdapter) Name() string {
	return BackendCdek
}

// CreateOrder registers the consolidated order with the carrier.
// It returns true only once the carrier has assigned a tracking number.
func (a *CdekAdapter) CreateOrder(ctx context.Context, order *fulfillment.ConsolidatedOrder) (bool, error) {
	log := a.logger.With(zap.String("order_id", order.OrderID.String()))

	request := a.buildOrderRequest(order)

	tariff, err := a.selectTariff(ctx, request)
	if err != nil {
		return false, err
	}
	request.TariffCode = tariff
	log.Debug("Selected tariff", zap.Int("tariff_code", tariff))

	if err := ctx.Err(); err != nil {
		return false, err
	}
	// Once the create request is on the wire the carrier may hold the
	// shipment, so creation and read-back are no longer bound to the run's
	// cancellation. The HTTP client timeout still bounds each request.
	ctx = context.WithoutCancel(ctx)

	var created cdekEntityResponse
	if err := a.doRequest(ctx, http.MethodPost, "orders", request, &created); err != nil {
		if fulfillment.IsFatal(err) {
			return false, err
		}
		log.Error("Failed to register order", zap.Error(err))
		return false, nil
	}
	if created.Entity.UUID == "" {
		log.Error("Order registration returned no uuid",
			zap.String("errors", created.firstRequestErrors()))
		return false, nil
	}

	if err := a.wait(ctx, a.config.StatusPollDelay); err != nil {
		return false, err
	}

	var info cdekEntityResponse
	if err := a.doRequest(ctx, http.MethodGet, "orders/"+url.PathEscape(created.Entity.UUID), nil, &info); err != nil {
		if fulfillment.IsFatal(err) {
			return false, err
		}
		log.Error("Failed to read back order", zap.String("uuid", created.Entity.UUID), zap.Error(err))
		return false, nil
	}

	if info.Entity.CdekNumber == "" {
		log.Error("Carrier rejected order",
			zap.String("uuid", created.Entity.UUID),
			zap.String("errors", info.firstRequestErrors()))
		return false, nil
	}

	log.Info("Order created", zap.String("tracking_number", info.Entity.CdekNumber))
	return true, nil
}

// buildOrderRequest translates a consolidated order into a single-parcel manifest
func (a *CdekAdapter) buildOrderRequest(order *fulfillment.ConsolidatedOrder) *CdekOrderRequest {
	itemWeight := ItemWeight(a.config.PackageWeight, order.TotalUnits())

	items := make([]CdekPackageItem, 0, len(order.Lines))
	for _, line := range order.Lines {
		items = append(items, CdekPackageItem{
			Name:    line.Name,
			WareKey: line.Code.String(),
			Payment: CdekPayment{Value: 0},
			Cost:    0,
			Weight:  itemWeight,
			Amount:  line.Quantity,
		})
	}

	return &CdekOrderRequest{
		Number:        truncateRunes(order.OrderID.String(), cdekOrderNumberLimit),
		TariffCode:    a.config.DefaultTariff,
		ShipmentPoint: a.config.ShipmentPoint,
		Recipient: CdekRecipient{
			Name:   order.Recipient.Name,
			Phones: []CdekPhone{{Number: order.Recipient.Phone}},
		},
		ToLocation: CdekLocation{
			Longitude: order.Address.Longitude,
			Latitude:  order.Address.Latitude,
			Region:    order.Address.Region,
			City:      order.Address.City,
			Address:   order.Address.Line,
		},
		Packages: []CdekPackage{{
			Number: "1",
			Weight: a.config.PackageWeight,
			Length: a.config.PackageLength,
			Width:  a.config.PackageWidth,
			Height: a.config.PackageHeight,
			Items:  items,
		}},
	}
}

// selectTariff asks the calculator which tariffs serve the draft.
// Only authentication failures are returned; anything else keeps the default tariff.
func (a *CdekAdapter) selectTariff(ctx context.Context, request *CdekOrderRequest) (int, error) {
	draft := *request
	draft.FromLocation = &CdekLocation{Code: a.config.OriginLocationCode}

	var resp cdekTariffListResponse
	if err := a.doRequest(ctx, http.MethodPost, "calculator/tarifflist", &draft, &resp); err != nil {
		if fulfillment.IsFatal(err) {
			return 0, err
		}
		a.logger.Warn("Tariff calculator failed, using default tariff",
			zap.String("order_id", request.Number),
			zap.Int("tariff_code", a.config.DefaultTariff),
			zap.Error(err))
		return a.config.DefaultTariff, nil
	}

	available := make([]int, 0, len(resp.TariffCodes))
	for _, t := range resp.TariffCodes {
		available = append(available, t.TariffCode)
	}
	return SelectTariff(available, a.config.PreferredTariffs, a.config.DefaultTariff), nil
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

// accessToken returns a valid bearer token, requesting a new one when the current one expired
func (a *CdekAdapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && (a.tokenExpiry.IsZero() || a.now().Before(a.tokenExpiry)) {
		return a.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", a.config.ClientID)
	form.Set("client_secret", a.config.ClientSecret)

	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", fulfillment.ErrAuthFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.APIBaseURL+"oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("cdek: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: cdek token request: %v", fulfillment.ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: cdek token response: %v", fulfillment.ErrAuthFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: cdek rejected credentials: HTTP %d", fulfillment.ErrAuthFailed, resp.StatusCode)
	}

	var token cdekTokenResponse
	if err := json.Unmarshal(body, &token); err != nil || token.AccessToken == "" {
		return "", fmt.Errorf("%w: cdek token response has no access_token", fulfillment.ErrAuthFailed)
	}

	a.token = token.AccessToken
	a.tokenExpiry = time.Time{}
	if token.ExpiresIn > 0 {
		a.tokenExpiry = a.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	a.logger.Debug("Obtained access token", zap.Int64("expires_in", token.ExpiresIn))
	return a.token, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an authenticated JSON request and decodes the response into out
func (a *CdekAdapter) doRequest(ctx context.Context, method, path string, body, out any) error {
	token, err := a.accessToken(ctx)
	if err != nil {
		return err
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrCdekUnavailable, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cdek: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("cdek: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCdekUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("cdek: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: cdek rejected the access token", fulfillment.ErrAuthFailed)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s %s: HTTP %d: %s", ErrCdekRequestFailed, method, path, resp.StatusCode, snippet(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrCdekInvalidResponse, method, path, err)
	}
	return nil
}

// wait blocks for d or until ctx is done
func (a *CdekAdapter) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// snippet shortens a response body for error messages
func snippet(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// Ensure CdekAdapter implements ShipmentBackend interface
var _ fulfillment.ShipmentBackend = (*CdekAdapter)(nil)
