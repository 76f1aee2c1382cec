package courier

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/config"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/pkg/errors"
)

func testShipment() Shipment {
	return Shipment{
		OrderName: "#1001",
		OrderDate: time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC),
		Consignee: Consignee{Name: "Asha Rao", Phone: "9876543210", Address1: "1 MG Road", City: "Pune", State: "MH", Pincode: "411001", Country: "India"},
		Items:     []Item{{SKU: "TS-M", Name: "T-shirt", Quantity: 2, Price: decimal.RequireFromString("199")}},
		Total:     decimal.RequireFromString("398"),
		COD:       true,
	}
}

func TestDelhiveryCreateShipment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/cmu/create.json", r.URL.Path)
		assert.Equal(t, "Token tok", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "json", r.PostForm.Get("format"))

		var data struct {
			Shipments []delhiveryShipment `json:"shipments"`
			Pickup    map[string]string   `json:"pickup_location"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("data")), &data))
		require.Len(t, data.Shipments, 1)
		assert.Equal(t, "COD", data.Shipments[0].PaymentMode)
		assert.Equal(t, "398.00", data.Shipments[0].CODAmount)
		assert.Equal(t, "2", data.Shipments[0].Quantity)
		assert.Equal(t, "Main WH", data.Pickup["name"])

		_, _ = w.Write([]byte(`{"success":true,"packages":[{"waybill":"DL123","status":"Success"}]}`))
	}))
	defer srv.Close()

	d := NewDelhivery(srv.URL, domain.CourierCredentials{Token: "tok", PickupLocation: "Main WH"}, zap.NewNop())
	b, err := d.CreateShipment(context.Background(), testShipment())
	require.NoError(t, err)
	assert.Equal(t, "DL123", b.AWB)
	assert.Equal(t, domain.CourierDelhivery, b.Courier)
}

func TestDelhiveryCreateShipmentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"packages":[{"waybill":"","remarks":["Pincode not serviceable"]}]}`))
	}))
	defer srv.Close()

	_, err := NewDelhivery(srv.URL, domain.CourierCredentials{Token: "tok"}, zap.NewNop()).CreateShipment(context.Background(), testShipment())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Pincode not serviceable")
}

func TestDelhiveryTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DL123", r.URL.Query().Get("waybill"))
		_, _ = w.Write([]byte(`{"ShipmentData":[{"Shipment":{"AWB":"DL123","Status":{"Status":"Delivered","StatusType":"DL","StatusLocation":"Pune","StatusDateTime":"2025-01-05T14:30:00.000"}}}]}`))
	}))
	defer srv.Close()

	tr, err := NewDelhivery(srv.URL, domain.CourierCredentials{Token: "tok"}, zap.NewNop()).Track(context.Background(), "DL123")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, tr.Status)
	assert.Equal(t, "Pune", tr.Location)
	require.NotNil(t, tr.DeliveredAt)
	assert.Equal(t, 5, tr.DeliveredAt.Day())
}

func TestDelhiveryStatusMapping(t *testing.T) {
	assert.Equal(t, domain.StatusDispatched, delhiveryStatus("Picked Up", "UD"))
	assert.Equal(t, domain.StatusOutForDelivery, delhiveryStatus("Dispatched", "UD"))
	assert.Equal(t, domain.StatusRTOInTransit, delhiveryStatus("In Transit", "RT"))
	assert.Equal(t, domain.StatusRTODelivered, delhiveryStatus("RTO", "DL"))
	assert.Equal(t, domain.CustomStatus(""), delhiveryStatus("Manifested", "UD"))
}

func TestShiprocketReusesToken(t *testing.T) {
	var logins int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/external/auth/login":
			atomic.AddInt32(&logins, 1)
			_, _ = w.Write([]byte(`{"token":"jwt"}`))
		case "/v1/external/orders/create/adhoc":
			assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Asha", body["billing_customer_name"])
			assert.Equal(t, "Rao", body["billing_last_name"])
			assert.Equal(t, "COD", body["payment_method"])
			_, _ = w.Write([]byte(`{"order_id":11,"shipment_id":22,"status":"NEW"}`))
		case "/v1/external/courier/assign/awb":
			_, _ = w.Write([]byte(`{"awb_assign_status":1,"response":{"data":{"awb_code":"SR999","courier_name":"Ekart"}}}`))
		case "/v1/external/courier/track/awb/SR999":
			_, _ = w.Write([]byte(`{"tracking_data":{"track_status":1,"shipment_track":[{"current_status":"OUT FOR DELIVERY","destination":"Pune"}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewShiprocket(srv.URL, domain.CourierCredentials{Username: "ops@example.com", Password: "pw", PickupLocation: "Primary"}, zap.NewNop())
	b, err := s.CreateShipment(context.Background(), testShipment())
	require.NoError(t, err)
	assert.Equal(t, "SR999", b.AWB)

	tr, err := s.Track(context.Background(), "SR999")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOutForDelivery, tr.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&logins))
}

func TestCourierAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad token"}`))
	}))
	defer srv.Close()

	_, err := NewDelhivery(srv.URL, domain.CourierCredentials{Token: "x"}, zap.NewNop()).Track(context.Background(), "A")
	var apiErr *APIError
	require.True(t, stderrors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestFactory(t *testing.T) {
	f := NewFactory(config.VendorConfig{DelhiveryBaseURL: "http://dl"}, zap.NewNop())
	store := &domain.Store{
		Shop: "a.myshopify.com",
		Integrations: domain.StoreIntegrations{
			DefaultCourier: domain.CourierDelhivery,
			Couriers: map[string]domain.CourierCredentials{
				domain.CourierDelhivery:  {Token: "t", PickupLocation: "WH", Enabled: true},
				domain.CourierShiprocket: {Username: "u", Password: "p", PickupLocation: "WH"},
			},
		},
	}

	c, err := f.ForStore(store, "")
	require.NoError(t, err)
	assert.Equal(t, domain.CourierDelhivery, c.Name())

	_, err = f.ForStore(store, domain.CourierShiprocket)
	var verr *errors.ErrValidation
	assert.True(t, stderrors.As(err, &verr), "disabled courier")

	_, err = f.ForStore(store, "fedex")
	assert.True(t, stderrors.As(err, &verr))
}

func TestValidateCredentials(t *testing.T) {
	err := ValidateCredentials(domain.CourierBluedart, domain.CourierCredentials{ClientID: "id"})
	var verr *errors.ErrValidation
	require.True(t, stderrors.As(err, &verr))
	assert.Contains(t, verr.Fields, "clientSecret")
	assert.Contains(t, verr.Fields, "loginId")

	assert.NoError(t, ValidateCredentials(domain.CourierXpressbees, domain.CourierCredentials{Username: "u", Password: "p"}))
}

func TestMask(t *testing.T) {
	m := Mask(domain.CourierCredentials{Token: "abcdefgh1234", Password: "pw", Username: "ops", Enabled: true})
	assert.Equal(t, "****1234", m.Token)
	assert.Equal(t, "****", m.Password)
	assert.Equal(t, "ops", m.Username)
	assert.True(t, m.Enabled)
}
