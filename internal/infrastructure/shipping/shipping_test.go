package shipping

import (
	"github.com/shopspring/decimal"

	"github.com/erp/shipsync/internal/domain/fulfillment"
)

// sampleOrder returns an order of three units over two product lines
func sampleOrder() *fulfillment.ConsolidatedOrder {
	return &fulfillment.ConsolidatedOrder{
		OrderID: "WB-ORDER-1",
		Recipient: fulfillment.Recipient{
			Name:  "Ivan Petrov",
			Phone: "+79990001122",
		},
		Address: fulfillment.Address{
			Region:    "Moscow",
			City:      "Moscow",
			Street:    "Tverskaya",
			House:     "1",
			Apartment: "5",
			Line:      "Moscow, Tverskaya 1, 125009",
			Latitude:  55.75,
			Longitude: 37.61,
		},
		Lines: []fulfillment.ProductLine{
			{Code: "B1", Name: "Mug", UnitPrice: decimal.RequireFromString("100.50"), Quantity: 2},
			{Code: "B2", Name: "Plate", UnitPrice: decimal.NewFromInt(50), Quantity: 1},
		},
		TaskIDs: []fulfillment.TaskID{"1", "2", "3"},
	}
}
