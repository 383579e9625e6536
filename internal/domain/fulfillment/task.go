package fulfillment

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskID identifies one marketplace assembly task
type TaskID string

// OrderID identifies a customer order; it is shared by all tasks of that order
type OrderID string

// ProductCode is the marketplace product code (barcode)
type ProductCode string

// String returns the string representation of TaskID
func (id TaskID) String() string {
	return string(id)
}

// String returns the string representation of OrderID
func (id OrderID) String() string {
	return string(id)
}

// String returns the string representation of ProductCode
func (c ProductCode) String() string {
	return string(c)
}

// ---------------------------------------------------------------------------
// Marketplace flags
// ---------------------------------------------------------------------------

// DeliveryType is the marketplace delivery scheme of a task
type DeliveryType int

const (
	// DeliveryTypeMarketplace is delivered by the marketplace's own logistics
	DeliveryTypeMarketplace DeliveryType = 1
	// DeliveryTypePickupPoint is delivered by the seller to a backend-managed pickup point
	DeliveryTypePickupPoint DeliveryType = 2
)

// UserStatus is the customer-facing status of a task
type UserStatus int

const (
	// UserStatusNew is a freshly placed task
	UserStatusNew UserStatus = 0
	// UserStatusCancelled was cancelled by the customer
	UserStatusCancelled UserStatus = 1
	// UserStatusReadyToShip is paid and waiting for the seller to ship
	UserStatusReadyToShip UserStatus = 4
)

// TaskStatus is the seller-side status pushed back to the marketplace
type TaskStatus int

const (
	// TaskStatusNew is the initial status of an open task
	TaskStatusNew TaskStatus = 0
	// TaskStatusAssembling marks the task as accepted for assembly and shipped to the backend
	TaskStatusAssembling TaskStatus = 1
)

// ---------------------------------------------------------------------------
// Task
// ---------------------------------------------------------------------------

// Recipient holds the buyer contact details
type Recipient struct {
	Name  string
	Phone string
}

// Address is a structured delivery address.
// Line is the free-text address as entered by the buyer; it usually ends with the postal index.
type Address struct {
	Region    string
	City      string
	Street    string
	House     string
	Apartment string
	Line      string
	Latitude  float64
	Longitude float64
}

// Task represents one marketplace fulfillment unit
type Task struct {
	// ID is unique per task
	ID TaskID
	// OrderID groups the tasks of one customer purchase
	OrderID OrderID
	// ProductCode is the product barcode
	ProductCode ProductCode
	// UnitPrice is the price of this unit in major currency units
	UnitPrice    decimal.Decimal
	Recipient    Recipient
	Address      Address
	DeliveryType DeliveryType
	UserStatus   UserStatus
	Status       TaskStatus
	CreatedAt    time.Time
}

// IsDispatchable reports whether the task should be handed to a shipping backend:
// pickup-point delivery that is ready to ship.
func (t Task) IsDispatchable() bool {
	return t.DeliveryType == DeliveryTypePickupPoint && t.UserStatus == UserStatusReadyToShip
}

// FilterDispatchable returns the dispatchable tasks, keeping their order
func FilterDispatchable(tasks []Task) []Task {
	result := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsDispatchable() {
			result = append(result, t)
		}
	}
	return result
}
