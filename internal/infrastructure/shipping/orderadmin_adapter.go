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
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/shipsync/internal/domain/fulfillment"
)

// orderadminExtIDLimit is the maximum length of the external order id
const orderadminExtIDLimit = 31

// BackendOrderadmin is the name reported by OrderadminAdapter
const BackendOrderadmin = "orderadmin"

const orderadminPaymentStatePaid = "paid"

var (
	// ErrOrderadminRequestFailed indicates a non-success HTTP response
	ErrOrderadminRequestFailed = errors.New("orderadmin: request failed")
	// ErrOrderadminInvalidResponse indicates a response body that could not be decoded
	ErrOrderadminInvalidResponse = errors.New("orderadmin: invalid response")
	// ErrOrderadminUnavailable indicates a transport failure
	ErrOrderadminUnavailable = errors.New("orderadmin: api unavailable")
	// ErrOrderadminUnknownReference indicates a configured id the account does not own
	ErrOrderadminUnknownReference = errors.New("orderadmin: unknown reference")
)

// OrderadminAdapter implements fulfillment.ShipmentBackend on top of the orderadmin fulfillment API
type OrderadminAdapter struct {
	config     *OrderadminConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	offers atomic.Pointer[OfferCatalog]
	// fresh marks a catalog loaded by the constructor that no run has used yet
	fresh atomic.Bool
}

// NewOrderadminAdapter creates the adapter, checks the configured shop,
// warehouse and sender against the account and loads the offer catalog.
func NewOrderadminAdapter(ctx context.Context, config *OrderadminConfig, logger *zap.Logger) (*OrderadminAdapter, error) {
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

	a := &OrderadminAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named(BackendOrderadmin),
	}

	if err := a.validateReferences(ctx); err != nil {
		return nil, err
	}

	offers, err := a.loadOfferCatalog(ctx)
	if err != nil {
		return nil, err
	}
	a.offers.Store(offers)
	a.fresh.Store(true)

	return a, nil
}

// Name returns the backend name
func (a *OrderadminAdapter) Name() string {
	return BackendOrderadmin
}

// Offers returns the current offer catalog
func (a *OrderadminAdapter) Offers() *OfferCatalog {
	return a.offers.Load()
}

// RefreshCatalog reloads the offer catalog before a run. The catalog loaded
// by the constructor serves the first run as is. When a reload fails for a
// non-fatal reason the previous catalog is kept.
func (a *OrderadminAdapter) RefreshCatalog(ctx context.Context) error {
	if a.fresh.CompareAndSwap(true, false) {
		return nil
	}

	offers, err := a.loadOfferCatalog(ctx)
	if err != nil {
		if fulfillment.IsFatal(err) {
			return err
		}
		a.logger.Warn("Failed to reload offer catalog, keeping previous one",
			zap.Int("offers", a.Offers().Len()),
			zap.Error(err))
		return nil
	}
	a.offers.Store(offers)
	return nil
}

// CreateOrder resolves the delivery locality and product offers, then creates the order
func (a *OrderadminAdapter) CreateOrder(ctx context.Context, order *fulfillment.ConsolidatedOrder) (bool, error) {
	log := a.logger.With(zap.String("order_id", order.OrderID.String()))

	postcode := extractPostcode(order.Address.Line)
	if postcode == "" {
		log.Error("Delivery address has no postcode", zap.String("address", order.Address.Line))
		return false, nil
	}

	locality, err := a.resolveLocality(ctx, postcode)
	if err != nil {
		if fulfillment.IsFatal(err) {
			return false, err
		}
		log.Error("Failed to look up postcode", zap.String("postcode", postcode), zap.Error(err))
		return false, nil
	}
	if locality == nil {
		log.Error("Postcode not found, order cancelled", zap.String("postcode", postcode))
		return false, nil
	}

	catalog := a.Offers()
	products := make([]OrderadminOrderProduct, 0, len(order.Lines))
	for _, line := range order.Lines {
		offer, ok := catalog.Lookup(line.Code.String())
		if !ok {
			log.Error("Product not found in fulfillment catalog, order cancelled",
				zap.String("product_code", line.Code.String()))
			return false, nil
		}
		products = append(products, OrderadminOrderProduct{
			ProductOffer: offer.ID,
			Shop:         a.config.ShopID,
			Count:        line.Quantity,
			Price:        line.UnitPrice.InexactFloat64(),
		})
	}

	total := order.TotalPrice().InexactFloat64()
	request := &OrderadminOrderRequest{
		Shop:         a.config.ShopID,
		ExtID:        truncateRunes(order.OrderID.String(), orderadminExtIDLimit),
		PaymentState: orderadminPaymentStatePaid,
		Profile:      OrderadminProfile{Name: order.Recipient.Name},
		Phone:        order.Recipient.Phone,
		Eav: map[string]string{
			"order-reserve-warehouse": a.config.WarehouseID,
		},
		DeliveryRequest: OrderadminDeliveryRequest{
			DeliveryService: a.config.DeliveryServiceID,
			RetailPrice:     0,
			EstimatedCost:   0,
			Rate:            a.config.RateID,
			Sender:          a.config.SenderID,
		},
		Address: OrderadminAddress{
			Locality:  locality,
			Postcode:  postcode,
			Street:    order.Address.Street,
			House:     order.Address.House,
			Apartment: order.Address.Apartment,
		},
		OrderProducts: products,
		OrderPrice:    total,
		TotalPrice:    total,
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}
	// Once the create request is on the wire the outcome must be observed,
	// so it is no longer bound to the run's cancellation.
	ctx = context.WithoutCancel(ctx)

	var created orderadminOrderResponse
	if err := a.doRequest(ctx, http.MethodPost, "products/order", nil, request, &created); err != nil {
		if fulfillment.IsFatal(err) {
			return false, err
		}
		log.Error("Failed to create order", zap.Error(err))
		return false, nil
	}

	log.Info("Order created", zap.String("fulfillment_order_id", rawString(created.ID)))
	return true, nil
}

// resolveLocality returns the locality id of a postcode, or nil when the postcode is unknown
func (a *OrderadminAdapter) resolveLocality(ctx context.Context, postcode string) (json.RawMessage, error) {
	var resp orderadminPostcodeList
	if err := a.doRequest(ctx, http.MethodGet, "delivery-services/postcodes", eqFilter("extId", postcode), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedded.Postcodes) == 0 {
		return nil, nil
	}
	id := resp.Embedded.Postcodes[0].Embedded.Locality.ID
	if len(id) == 0 {
		return nil, nil
	}
	return id, nil
}

// validateReferences checks that shop, warehouse and sender belong to the account
func (a *OrderadminAdapter) validateReferences(ctx context.Context) error {
	checks := []struct {
		path, embedded, label, want string
	}{
		{"products/shops", "shops", "shop", a.config.ShopID},
		{"storage/warehouse", "warehouse", "warehouse", a.config.WarehouseID},
		{"delivery-services/senders", "senders", "sender", a.config.SenderID},
	}

	for _, c := range checks {
		var resp orderadminCollection
		if err := a.doRequest(ctx, http.MethodGet, c.path, nil, nil, &resp); err != nil {
			return fmt.Errorf("orderadmin: load %s list: %w", c.label, err)
		}
		if !containsID(resp.Embedded[c.embedded], c.want) {
			return fmt.Errorf("%w: %w: %s %q", fulfillment.ErrConfigInvalid, ErrOrderadminUnknownReference, c.label, c.want)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs a basic-auth JSON request and decodes the response into out
func (a *OrderadminAdapter) doRequest(ctx context.Context, method, path string, params url.Values, body, out any) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrOrderadminUnavailable, err)
	}

	endpoint := a.config.APIBaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("orderadmin: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("orderadmin: failed to create request: %w", err)
	}
	req.SetBasicAuth(a.config.PublicKey, a.config.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOrderadminUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("orderadmin: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: orderadmin rejected the api keys", fulfillment.ErrAuthFailed)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s %s: HTTP %d: %s", ErrOrderadminRequestFailed, method, path, resp.StatusCode, snippet(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrOrderadminInvalidResponse, method, path, err)
	}
	return nil
}

// extractPostcode returns the last whitespace-separated token of a free-text address
func extractPostcode(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[len(fields)-1], ",.")
}

// containsID reports whether any item has the given id
func containsID(items []map[string]json.RawMessage, id string) bool {
	for _, item := range items {
		if rawString(item["id"]) == id {
			return true
		}
	}
	return false
}

// Ensure OrderadminAdapter implements ShipmentBackend interface
var (
	_ fulfillment.ShipmentBackend  = (*OrderadminAdapter)(nil)
	_ fulfillment.CatalogRefresher = (*OrderadminAdapter)(nil)
)
