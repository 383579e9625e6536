package fulfillment

import "context"

// MarketplaceGateway is the port to the marketplace that owns the tasks
type MarketplaceGateway interface {
	// FetchOpenTasks returns all open tasks; pagination is handled by the adapter
	FetchOpenTasks(ctx context.Context) ([]Task, error)

	// FetchProductCatalog returns product metadata keyed by product code
	FetchProductCatalog(ctx context.Context) (ProductCatalog, error)

	// UpdateTaskStatus sets the seller-side status of one task
	UpdateTaskStatus(ctx context.Context, id TaskID, status TaskStatus) error
}

// ShipmentBackend creates shipments on a carrier or fulfillment service.
// Implementations are selected once at process start by configuration.
type ShipmentBackend interface {
	// Name returns a short backend identifier for logs and metrics
	Name() string

	// CreateOrder creates a shipment for the order.
	// It returns true only when the backend confirmed the shipment. Business
	// rejections (unknown product, unknown postal index, carrier errors) are
	// logged by the backend and reported as (false, nil). A non-nil error is
	// returned only for fatal conditions such as ErrAuthFailed. Once the
	// create request has been sent the call runs to completion even if ctx
	// is cancelled.
	CreateOrder(ctx context.Context, order *ConsolidatedOrder) (bool, error)
}

// CatalogRefresher is implemented by backends that cache reference data.
// RefreshCatalog is called at the start of every run that has orders to
// dispatch; the refreshed data stays unchanged for the rest of that run.
// A non-nil error is returned only for fatal conditions.
type CatalogRefresher interface {
	RefreshCatalog(ctx context.Context) error
}

// Ledger is the persisted set of task identifiers already dispatched
type Ledger interface {
	// IsProcessed reports whether a previous dispatch recorded id
	IsProcessed(id TaskID) bool

	// MarkProcessed durably records all ids; on error nothing is recorded
	MarkProcessed(ctx context.Context, ids []TaskID) error
}

// AnyProcessed applies the order-level skip rule: an order is skipped when any
// one of its task ids is already in the ledger. The first recorded id is returned.
func AnyProcessed(ledger Ledger, ids []TaskID) (TaskID, bool) {
	for _, id := range ids {
		if ledger.IsProcessed(id) {
			return id, true
		}
	}
	return "", false
}
