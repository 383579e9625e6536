package shipping

import "encoding/json"

// cdekTokenResponse is the oauth/token response
type cdekTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// CdekOrderRequest is the body of POST orders and, with FromLocation set,
// of POST calculator/tarifflist
type CdekOrderRequest struct {
	Number        string        `json:"number"`
	TariffCode    int           `json:"tariff_code"`
	ShipmentPoint string        `json:"shipment_point"`
	Recipient     CdekRecipient `json:"recipient"`
	FromLocation  *CdekLocation `json:"from_location,omitempty"`
	ToLocation    CdekLocation  `json:"to_location"`
	Packages      []CdekPackage `json:"packages"`
}

// CdekRecipient is the receiving party
type CdekRecipient struct {
	Name   string      `json:"name"`
	Phones []CdekPhone `json:"phones"`
}

// CdekPhone is one contact number
type CdekPhone struct {
	Number string `json:"number"`
}

// CdekLocation is either a destination address or a calculator origin code
type CdekLocation struct {
	Code      int     `json:"code,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Region    string  `json:"region,omitempty"`
	City      string  `json:"city,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// CdekPackage is one physical parcel
type CdekPackage struct {
	Number string            `json:"number"`
	Weight int               `json:"weight"`
	Length int               `json:"length"`
	Width  int               `json:"width"`
	Height int               `json:"height"`
	Items  []CdekPackageItem `json:"items"`
}

// CdekPackageItem is one product line inside a parcel
type CdekPackageItem struct {
	Name    string      `json:"name"`
	WareKey string      `json:"ware_key"`
	Payment CdekPayment `json:"payment"`
	Cost    float64     `json:"cost"`
	Weight  int         `json:"weight"`
	Amount  int         `json:"amount"`
}

// CdekPayment is the cash-on-delivery amount for an item
type CdekPayment struct {
	Value float64 `json:"value"`
}

// cdekTariffListResponse is the calculator/tarifflist response
type cdekTariffListResponse struct {
	TariffCodes []struct {
		TariffCode int `json:"tariff_code"`
	} `json:"tariff_codes"`
}

// cdekEntityResponse is the common envelope of orders endpoints
type cdekEntityResponse struct {
	Entity struct {
		UUID       string `json:"uuid"`
		CdekNumber string `json:"cdek_number"`
	} `json:"entity"`
	Requests []cdekRequestState `json:"requests"`
}

// cdekRequestState describes the processing state of an asynchronous request
type cdekRequestState struct {
	RequestUUID string          `json:"request_uuid"`
	Type        string          `json:"type"`
	State       string          `json:"state"`
	Errors      json.RawMessage `json:"errors"`
}

// firstRequestErrors returns the errors of the first request entry, if any
func (r *cdekEntityResponse) firstRequestErrors() string {
	if len(r.Requests) == 0 || len(r.Requests[0].Errors) == 0 {
		return ""
	}
	return string(r.Requests[0].Errors)
}
