package shipping

import (
	"bytes"
	"encoding/json"
)

// orderadminCollection is the HAL envelope of list endpoints.
// Items are kept raw since their schema depends on the entity.
type orderadminCollection struct {
	Embedded   map[string][]map[string]json.RawMessage `json:"_embedded"`
	PageCount  int                                     `json:"page_count"`
	PageSize   int                                     `json:"page_size"`
	TotalItems int                                     `json:"total_items"`
	Page       int                                     `json:"page"`
}

// orderadminPostcodeList is the response of delivery-services/postcodes
type orderadminPostcodeList struct {
	Embedded struct {
		Postcodes []orderadminPostcode `json:"postcodes"`
	} `json:"_embedded"`
}

type orderadminPostcode struct {
	ExtID    json.RawMessage `json:"extId"`
	Embedded struct {
		Locality struct {
			ID   json.RawMessage `json:"id"`
			Name string          `json:"name"`
		} `json:"locality"`
	} `json:"_embedded"`
}

// OrderadminOrderRequest is the body of POST products/order
type OrderadminOrderRequest struct {
	Shop            string                    `json:"shop"`
	ExtID           string                    `json:"extId"`
	PaymentState    string                    `json:"paymentState"`
	Profile         OrderadminProfile         `json:"profile"`
	Phone           string                    `json:"phone"`
	Eav             map[string]string         `json:"eav"`
	DeliveryRequest OrderadminDeliveryRequest `json:"deliveryRequest"`
	Address         OrderadminAddress         `json:"address"`
	OrderProducts   []OrderadminOrderProduct  `json:"orderProducts"`
	OrderPrice      float64                   `json:"orderPrice"`
	TotalPrice      float64                   `json:"totalPrice"`
}

// OrderadminProfile is the customer profile
type OrderadminProfile struct {
	Name string `json:"name"`
}

// OrderadminDeliveryRequest selects the delivery service and sender
type OrderadminDeliveryRequest struct {
	DeliveryService int     `json:"deliveryService"`
	RetailPrice     float64 `json:"retailPrice"`
	EstimatedCost   float64 `json:"estimatedCost"`
	Rate            int     `json:"rate"`
	Sender          string  `json:"sender"`
}

// OrderadminAddress is the delivery address resolved to a locality
type OrderadminAddress struct {
	Locality  json.RawMessage `json:"locality"`
	Postcode  string          `json:"postcode"`
	Street    string          `json:"street"`
	House     string          `json:"house"`
	Apartment string          `json:"apartment"`
}

// OrderadminOrderProduct is one order line referencing a product offer
type OrderadminOrderProduct struct {
	ProductOffer json.RawMessage `json:"productOffer"`
	Shop         string          `json:"shop"`
	Count        int             `json:"count"`
	Price        float64         `json:"price"`
}

// orderadminOrderResponse is the created order
type orderadminOrderResponse struct {
	ID json.RawMessage `json:"id"`
}

// rawString renders a JSON scalar as plain text: strings are unquoted,
// numbers and other literals are returned as written.
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
