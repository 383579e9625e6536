package fulfillment

import (
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Aggregation
// ---------------------------------------------------------------------------

// OrderGroup is the set of tasks that share an order identifier
type OrderGroup struct {
	OrderID OrderID
	Tasks   []Task
}

// TaskIDs returns the identifiers of all tasks in the group, in task order
func (g OrderGroup) TaskIDs() []TaskID {
	ids := make([]TaskID, len(g.Tasks))
	for i, t := range g.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// Aggregate partitions tasks by order identifier.
// Groups are ordered by the first appearance of their order id in tasks,
// and tasks inside a group keep their input order. No filtering is done here.
func Aggregate(tasks []Task) []OrderGroup {
	index := make(map[OrderID]int)
	groups := make([]OrderGroup, 0)

	for _, t := range tasks {
		i, ok := index[t.OrderID]
		if !ok {
			i = len(groups)
			index[t.OrderID] = i
			groups = append(groups, OrderGroup{OrderID: t.OrderID})
		}
		groups[i].Tasks = append(groups[i].Tasks, t)
	}

	return groups
}

// ---------------------------------------------------------------------------
// Product catalog
// ---------------------------------------------------------------------------

// ProductMeta is the marketplace product card data needed for shipping
type ProductMeta struct {
	Code ProductCode
	Name string
}

// ProductCatalog maps product codes to their marketplace metadata
type ProductCatalog map[ProductCode]ProductMeta

// Name returns the display name of a product, or false if the code is unknown
func (c ProductCatalog) Name(code ProductCode) (string, bool) {
	meta, ok := c[code]
	if !ok || meta.Name == "" {
		return "", false
	}
	return meta.Name, true
}

// ---------------------------------------------------------------------------
// ConsolidatedOrder
// ---------------------------------------------------------------------------

// ProductLine is a merged product entry of a consolidated order
type ProductLine struct {
	Code      ProductCode
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns unit price times quantity
func (l ProductLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ConsolidatedOrder is one customer order built from its task group.
// Recipient and address come from the first task; the marketplace repeats them on every task.
type ConsolidatedOrder struct {
	OrderID   OrderID
	Recipient Recipient
	Address   Address
	// Lines holds one entry per distinct product code, in first-seen order
	Lines []ProductLine
	// TaskIDs lists every task merged into this order
	TaskIDs []TaskID
}

// Line returns the product line for code
func (o *ConsolidatedOrder) Line(code ProductCode) (ProductLine, bool) {
	for _, l := range o.Lines {
		if l.Code == code {
			return l, true
		}
	}
	return ProductLine{}, false
}

// TotalUnits returns the sum of quantities over all lines
func (o *ConsolidatedOrder) TotalUnits() int {
	total := 0
	for _, l := range o.Lines {
		total += l.Quantity
	}
	return total
}

// TotalPrice returns the sum of unit price times quantity over all lines
func (o *ConsolidatedOrder) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Total())
	}
	return total
}

// BuildConsolidated merges a task group into a ConsolidatedOrder.
// Each task contributes one unit to the line of its product code; the unit price
// of a line is taken from the first task carrying that code. Product names come
// from catalog, falling back to the product code when the catalog has no entry.
func BuildConsolidated(group OrderGroup, catalog ProductCatalog) (*ConsolidatedOrder, error) {
	if len(group.Tasks) == 0 {
		return nil, ErrEmptyOrderGroup
	}

	first := group.Tasks[0]
	order := &ConsolidatedOrder{
		OrderID:   group.OrderID,
		Recipient: first.Recipient,
		Address:   first.Address,
		Lines:     make([]ProductLine, 0, len(group.Tasks)),
		TaskIDs:   group.TaskIDs(),
	}

	positions := make(map[ProductCode]int, len(group.Tasks))
	for _, t := range group.Tasks {
		if i, ok := positions[t.ProductCode]; ok {
			order.Lines[i].Quantity++
			continue
		}

		name, ok := catalog.Name(t.ProductCode)
		if !ok {
			name = t.ProductCode.String()
		}
		positions[t.ProductCode] = len(order.Lines)
		order.Lines = append(order.Lines, ProductLine{
			Code:      t.ProductCode,
			Name:      name,
			UnitPrice: t.UnitPrice,
			Quantity:  1,
		})
	}

	return order, nil
}
