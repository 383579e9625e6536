package marketplace

import (
	"bytes"
	"encoding/json"
)

// flexString decodes a JSON string or number into a string.
// The supplier API is not consistent about identifier and phone types.
type flexString string

// UnmarshalJSON implements json.Unmarshaler
func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = flexString(num.String())
	return nil
}

// WildberriesOrdersResponse is the response of GET orders
type WildberriesOrdersResponse struct {
	Total  int                `json:"total"`
	Orders []WildberriesOrder `json:"orders"`
}

// WildberriesOrder is one assembly task as returned by the supplier API
type WildberriesOrder struct {
	OrderID                flexString                `json:"orderId"`
	OrderUID               string                    `json:"orderUID"`
	DateCreated            string                    `json:"dateCreated"`
	Barcode                string                    `json:"barcode"`
	TotalPrice             int64                     `json:"totalPrice"`
	Status                 int                       `json:"status"`
	UserStatus             int                       `json:"userStatus"`
	DeliveryType           int                       `json:"deliveryType"`
	DeliveryAddress        string                    `json:"deliveryAddress"`
	DeliveryAddressDetails WildberriesAddressDetails `json:"deliveryAddressDetails"`
	UserInfo               WildberriesUserInfo       `json:"userInfo"`
}

// WildberriesAddressDetails is the structured delivery address
type WildberriesAddressDetails struct {
	Province  string  `json:"province"`
	Area      string  `json:"area"`
	City      string  `json:"city"`
	Street    string  `json:"street"`
	Home      string  `json:"home"`
	Flat      string  `json:"flat"`
	Entrance  string  `json:"entrance"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// WildberriesUserInfo is the buyer contact block
type WildberriesUserInfo struct {
	UserID flexString `json:"userId"`
	Fio    string     `json:"fio"`
	Phone  flexString `json:"phone"`
}

// WildberriesStocksResponse is the response of GET stocks
type WildberriesStocksResponse struct {
	Total  int                `json:"total"`
	Stocks []WildberriesStock `json:"stocks"`
}

// WildberriesStock is one product card with its stock level
type WildberriesStock struct {
	Barcode     string `json:"barcode"`
	Name        string `json:"name"`
	Article     string `json:"article"`
	Brand       string `json:"brand"`
	Stock       int64  `json:"stock"`
	ChrtID      int64  `json:"chrtId"`
	NmID        int64  `json:"nmId"`
	Subject     string `json:"subject"`
	Size        string `json:"size"`
	WarehouseID int64  `json:"warehouseId"`
}

// WildberriesStatusUpdate is one element of the PUT orders body
type WildberriesStatusUpdate struct {
	OrderID string `json:"orderId"`
	Status  int    `json:"status"`
}
