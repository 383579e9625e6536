// Package fulfillment contains the Fulfillment bounded context.
// It turns marketplace assembly tasks into shipments on a delivery backend.
//
// Key concepts:
//   - Task: one marketplace fulfillment unit (one product unit of a customer purchase)
//   - OrderGroup: all tasks sharing an order identifier
//   - ConsolidatedOrder: an order group with duplicate product lines merged
//   - ShipmentBackend: port for the carrier or fulfillment service that creates shipments
//   - Ledger: port for the persisted set of already dispatched task identifiers
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (marketplace, shipping, ledger) are in the infrastructure layer
package fulfillment
