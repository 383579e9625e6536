package shipping

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/shipsync/internal/domain/fulfillment"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

// cdekFake is a scripted CDEK API
type cdekFake struct {
	t              *testing.T
	tokenStatus    int
	tokenBody      string
	tokenRequests  atomic.Int32
	tariffStatus   int
	tariffs        []int
	orderStatus    int
	createdUUID    string
	trackingNumber string
	calculatorBody map[string]any
	orderBody      map[string]any
	// onOrder runs after the create request is decoded
	onOrder func()
}

func newCdekFake(t *testing.T) *cdekFake {
	return &cdekFake{
		t:              t,
		tokenStatus:    http.StatusOK,
		tokenBody:      `{"access_token":"tok","token_type":"bearer","expires_in":3600}`,
		tariffStatus:   http.StatusOK,
		tariffs:        []int{11, 137, 233},
		orderStatus:    http.StatusAccepted,
		createdUUID:    "72753031-0000-0000-0000-000000000001",
		trackingNumber: "1106207236",
	}
}

func (f *cdekFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/v2/oauth/token" {
		f.tokenRequests.Add(1)
		assert.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(f.t, "client", r.PostForm.Get("client_id"))
		assert.Equal(f.t, "secret", r.PostForm.Get("client_secret"))
		w.WriteHeader(f.tokenStatus)
		_, _ = w.Write([]byte(f.tokenBody))
		return
	}

	assert.Equal(f.t, "Bearer tok", r.Header.Get("Authorization"))

	switch {
	case r.URL.Path == "/v2/calculator/tarifflist":
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.calculatorBody))
		w.WriteHeader(f.tariffStatus)
		codes := make([]map[string]int, 0, len(f.tariffs))
		for _, c := range f.tariffs {
			codes = append(codes, map[string]int{"tariff_code": c})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"tariff_codes": codes})
	case r.URL.Path == "/v2/orders" && r.Method == http.MethodPost:
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.orderBody))
		if f.onOrder != nil {
			f.onOrder()
		}
		w.WriteHeader(f.orderStatus)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"entity":   map[string]string{"uuid": f.createdUUID},
			"requests": []map[string]any{{"type": "CREATE", "state": "ACCEPTED"}},
		})
	case r.URL.Path == "/v2/orders/"+f.createdUUID && r.Method == http.MethodGet:
		entity := map[string]string{"uuid": f.createdUUID}
		if f.trackingNumber != "" {
			entity["cdek_number"] = f.trackingNumber
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"entity": entity,
			"requests": []map[string]any{{
				"type":   "CREATE",
				"state":  "INVALID",
				"errors": []map[string]string{{"code": "v2_entity_invalid", "message": "bad phone"}},
			}},
		})
	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestCdekAdapter(t *testing.T, fake *cdekFake) (*CdekAdapter, *httptest.Server) {
	t.Helper()
	return newTestCdekAdapterWith(t, fake, zap.NewNop(), nil)
}

func newTestCdekAdapterWith(t *testing.T, fake *cdekFake, logger *zap.Logger, configure func(*CdekConfig)) (*CdekAdapter, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	config := NewCdekConfig("client", "secret", "MSK123", 1000)
	config.APIBaseURL = server.URL + "/v2/"
	config.StatusPollDelay = 0
	if configure != nil {
		configure(config)
	}

	adapter, err := NewCdekAdapter(context.Background(), config, logger)
	require.NoError(t, err)
	return adapter, server
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestCdekConfig_Validate(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		config := NewCdekConfig("", "secret", "MSK1", 1000)
		assert.ErrorIs(t, config.Validate(), ErrCdekConfigMissingCredentials)
	})

	t.Run("missing shipment point", func(t *testing.T) {
		config := NewCdekConfig("id", "secret", " ", 1000)
		assert.ErrorIs(t, config.Validate(), ErrCdekConfigMissingShipmentPoint)
	})

	t.Run("invalid weight", func(t *testing.T) {
		config := NewCdekConfig("id", "secret", "MSK1", 0)
		assert.ErrorIs(t, config.Validate(), ErrCdekConfigInvalidWeight)
	})

	t.Run("defaults", func(t *testing.T) {
		config := &CdekConfig{ClientID: "id", ClientSecret: "secret", ShipmentPoint: "MSK1", PackageWeight: 500}
		require.NoError(t, config.Validate())
		assert.Equal(t, CdekProductionAPIURL, config.APIBaseURL)
		assert.Equal(t, 10, config.PackageLength)
		assert.Equal(t, 270, config.OriginLocationCode)
		assert.Equal(t, 11, config.DefaultTariff)
		assert.Equal(t, []int{137, 233}, config.PreferredTariffs)
	})
}

// ---------------------------------------------------------------------------
// Tariff and Weight Tests
// ---------------------------------------------------------------------------

func TestSelectTariff(t *testing.T) {
	preferred := []int{137, 233}
	tests := []struct {
		name      string
		available []int
		expected  int
	}{
		{"both preferred offered", []int{11, 233, 137}, 137},
		{"second preferred only", []int{233, 11}, 233},
		{"no preferred", []int{11, 62}, 11},
		{"empty response", nil, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SelectTariff(tt.available, preferred, 11))
		})
	}
}

func TestItemWeight(t *testing.T) {
	assert.Equal(t, 333, ItemWeight(1000, 3))
	assert.Equal(t, 250, ItemWeight(500, 2))
	assert.Equal(t, 2, ItemWeight(5, 2))
	assert.Equal(t, 4, ItemWeight(7, 2))
	assert.Equal(t, 100, ItemWeight(100, 0))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "абв", truncateRunes("абвгд", 3))
	assert.Equal(t, "short", truncateRunes("short", 40))
	assert.Equal(t, "", truncateRunes("abc", 0))
}

// ---------------------------------------------------------------------------
// Authentication Tests
// ---------------------------------------------------------------------------

func TestNewCdekAdapter_AuthFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"rejected credentials", http.StatusUnauthorized, `{"error":"invalid_client"}`},
		{"missing access token", http.StatusOK, `{"token_type":"bearer"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newCdekFake(t)
			fake.tokenStatus = tt.status
			fake.tokenBody = tt.body
			server := httptest.NewServer(fake)
			defer server.Close()

			config := NewCdekConfig("client", "secret", "MSK123", 1000)
			config.APIBaseURL = server.URL + "/v2/"

			adapter, err := NewCdekAdapter(context.Background(), config, zap.NewNop())
			assert.ErrorIs(t, err, fulfillment.ErrAuthFailed)
			assert.Nil(t, adapter)
		})
	}
}

func TestNewCdekAdapter_InvalidConfig(t *testing.T) {
	_, err := NewCdekAdapter(context.Background(), &CdekConfig{}, nil)
	assert.ErrorIs(t, err, fulfillment.ErrConfigInvalid)
}

func TestCdekAdapter_TokenRefresh(t *testing.T) {
	fake := newCdekFake(t)
	fake.tokenBody = `{"access_token":"tok","expires_in":60}`
	adapter, _ := newTestCdekAdapter(t, fake)

	current := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	adapter.now = func() time.Time { return current }
	adapter.tokenExpiry = current.Add(60 * time.Second)

	_, err := adapter.CreateOrder(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.tokenRequests.Load())

	current = current.Add(2 * time.Minute)
	_, err = adapter.CreateOrder(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.tokenRequests.Load())
}

// ---------------------------------------------------------------------------
// CreateOrder Tests
// ---------------------------------------------------------------------------

func TestCdekAdapter_CreateOrder_Success(t *testing.T) {
	fake := newCdekFake(t)
	adapter, _ := newTestCdekAdapter(t, fake)

	ok, err := adapter.CreateOrder(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, BackendCdek, adapter.Name())

	require.NotNil(t, fake.calculatorBody)
	assert.Equal(t, map[string]any{"code": float64(270)}, fake.calculatorBody["from_location"])

	require.NotNil(t, fake.orderBody)
	assert.Equal(t, "WB-ORDER-1", fake.orderBody["number"])
	assert.Equal(t, float64(137), fake.orderBody["tariff_code"])
	assert.Equal(t, "MSK123", fake.orderBody["shipment_point"])
	assert.NotContains(t, fake.orderBody, "from_location")

	recipient := fake.orderBody["recipient"].(map[string]any)
	assert.Equal(t, "Ivan Petrov", recipient["name"])
	assert.Equal(t, []any{map[string]any{"number": "+79990001122"}}, recipient["phones"])

	to := fake.orderBody["to_location"].(map[string]any)
	assert.Equal(t, "Moscow, Tverskaya 1, 125009", to["address"])
	assert.Equal(t, "Moscow", to["region"])

	packages := fake.orderBody["packages"].([]any)
	require.Len(t, packages, 1)
	pkg := packages[0].(map[string]any)
	assert.Equal(t, "1", pkg["number"])
	assert.Equal(t, float64(1000), pkg["weight"])
	assert.Equal(t, float64(10), pkg["length"])

	items := pkg["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "Mug", first["name"])
	assert.Equal(t, "B1", first["ware_key"])
	assert.Equal(t, float64(333), first["weight"])
	assert.Equal(t, float64(2), first["amount"])
	assert.Equal(t, float64(0), first["cost"])
	assert.Equal(t, map[string]any{"value": float64(0)}, first["payment"])
}

func TestCdekAdapter_CreateOrder_SecondPreferredTariff(t *testing.T) {
	fake := newCdekFake(t)
	fake.tariffs = []int{233, 11}
	adapter, _ := newTestCdekAdapter(t, fake)

	ok, err := adapter.CreateOrder(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, float64(233), fake.orderBody["tariff_code"])
}

func TestCdekAdapter_CreateOrder_CalculatorFailureKeepsDefault(t *testing.T) {
	fake := newCdekFake(t)
	fake.tariffStatus = http.StatusInternalServerError
	adapter, _ := newTestCdekAdapter(t, fake)

	ok, err := adapter.CreateOrder(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, float64(11), fake.orderBody["tariff_code"])
}

func TestCdekAdapter_CreateOrder_NoTrackingNumber(t *testing.T) {
	fake := newCdekFake(t)
	fake.trackingNumber = ""
	core, logs := observer.New(zap.DebugLevel)
	adapter, _ := newTestCdekAdapterWith(t, fake, zap.New(core), nil)

	ok, err := adapter.CreateOrder(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.False(t, ok)

	errorLogs := logs.FilterLevelExact(zap.ErrorLevel).All()
	require.Len(t, errorLogs, 1)
	assert.Equal(t, "Carrier rejected order", errorLogs[0].Message)
	fields := errorLogs[0].ContextMap()
	assert.Equal(t, "WB-ORDER-1", fields["order_id"])
	assert.Equal(t, fake.createdUUID, fields["uuid"])
	assert.Contains(t, fields["errors"], "v2_entity_invalid")
}

func TestCdekAdapter_CreateOrder_CompletesAfterCancellation(t *testing.T) {
	fake := newCdekFake(t)
	adapter, _ := newTestCdekAdapterWith(t, fake, zap.NewNop(), func(c *CdekConfig) {
		c.StatusPollDelay = 50 * time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake.onOrder = cancel

	ok, err := adapter.CreateOrder(ctx, sampleOrder())
	require.NoError(t, err)
	assert.True(t, ok, "an order sent to the carrier must be confirmed even if the run is cancelled")
}

func TestCdekAdapter_CreateOrder_CancelledBeforeCreate(t *testing.T) {
	fake := newCdekFake(t)
	adapter, _ := newTestCdekAdapter(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := adapter.CreateOrder(ctx, sampleOrder())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
	assert.Nil(t, fake.orderBody)
}

func TestCdekAdapter_CreateOrder_NoUUID(t *testing.T) {
	fake := newCdekFake(t)
	fake.createdUUID = ""
	adapter, _ := newTestCdekAdapter(t, fake)

	ok, err := adapter.CreateOrder(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCdekAdapter_CreateOrder_Rejected(t *testing.T) {
	fake := newCdekFake(t)
	fake.orderStatus = http.StatusBadRequest
	adapter, _ := newTestCdekAdapter(t, fake)

	ok, err := adapter.CreateOrder(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCdekAdapter_CreateOrder_Unauthorized(t *testing.T) {
	fake := newCdekFake(t)
	fake.orderStatus = http.StatusUnauthorized
	adapter, _ := newTestCdekAdapter(t, fake)

	ok, err := adapter.CreateOrder(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, fulfillment.ErrAuthFailed)
	assert.False(t, ok)
}

func TestCdekAdapter_CreateOrder_LongOrderNumber(t *testing.T) {
	fake := newCdekFake(t)
	adapter, _ := newTestCdekAdapter(t, fake)

	order := sampleOrder()
	order.OrderID = "0123456789012345678901234567890123456789EXTRA"
	_, err := adapter.CreateOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "0123456789012345678901234567890123456789", fake.orderBody["number"])
}
