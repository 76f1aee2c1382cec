package courier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
)

var xpressbeesStatuses = statusTable{
	"picked up":        domain.StatusDispatched,
	"in transit":       domain.StatusInTransit,
	"out for delivery": domain.StatusOutForDelivery,
	"delivered":        domain.StatusDelivered,
	"rto":              domain.StatusRTOInTransit,
	"rto in transit":   domain.StatusRTOInTransit,
	"rto delivered":    domain.StatusRTODelivered,
	"lost":             domain.StatusLost,
}

// Xpressbees logs in once per client and keeps the bearer token
type Xpressbees struct {
	httpClient
	username string
	password string
	pickup   string

	mu    sync.Mutex
	token string
}

func NewXpressbees(baseURL string, creds domain.CourierCredentials, logger *zap.Logger) *Xpressbees {
	return &Xpressbees{
		httpClient: newHTTPClient(domain.CourierXpressbees, baseURL, logger),
		username:   creds.Username,
		password:   creds.Password,
		pickup:     creds.PickupLocation,
	}
}

func (x *Xpressbees) Name() string { return domain.CourierXpressbees }

func (x *Xpressbees) auth(ctx context.Context) (map[string]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.token == "" {
		var resp struct {
			Status bool   `json:"status"`
			Data   string `json:"data"`
		}
		body := map[string]string{"email": x.username, "password": x.password}
		if err := x.do(ctx, http.MethodPost, "/api/users/login", nil, body, &resp); err != nil {
			return nil, fmt.Errorf("xpressbees login: %w", err)
		}
		if !resp.Status || resp.Data == "" {
			return nil, fmt.Errorf("xpressbees login rejected")
		}
		x.token = resp.Data
	}
	return map[string]string{"Authorization": "Bearer " + x.token}, nil
}

func (x *Xpressbees) CreateShipment(ctx context.Context, s Shipment) (*Booking, error) {
	headers, err := x.auth(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]interface{}, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, map[string]interface{}{"name": it.Name, "sku": it.SKU, "qty": it.Quantity, "price": it.Price.StringFixed(2)})
	}
	payment := "prepaid"
	if s.COD {
		payment = "cod"
	}
	body := map[string]interface{}{
		"order_number":       s.OrderName,
		"payment_type":       payment,
		"order_amount":       s.Total.StringFixed(2),
		"collectable_amount": s.codAmount().StringFixed(2),
		"package_weight":     s.WeightGrams,
		"consignee": map[string]string{
			"name":      s.Consignee.Name,
			"address":   s.Consignee.Address1,
			"address_2": s.Consignee.Address2,
			"city":      s.Consignee.City,
			"state":     s.Consignee.State,
			"pincode":   s.Consignee.Pincode,
			"phone":     s.Consignee.Phone,
		},
		"pickup":      map[string]string{"warehouse_name": firstNonEmpty(s.PickupLocation, x.pickup)},
		"order_items": items,
	}
	var resp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AWBNumber string `json:"awb_number"`
		} `json:"data"`
	}
	if err := x.do(ctx, http.MethodPost, "/api/shipments2", headers, body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status || resp.Data.AWBNumber == "" {
		return nil, fmt.Errorf("xpressbees rejected shipment: %s", resp.Message)
	}
	awb := resp.Data.AWBNumber
	return &Booking{AWB: awb, Courier: x.Name(), TrackingURL: TrackingURL(domain.CourierXpressbees, awb)}, nil
}

func (x *Xpressbees) Track(ctx context.Context, awb string) (*Tracking, error) {
	headers, err := x.auth(ctx)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Status bool `json:"status"`
		Data   struct {
			Status  string `json:"status"`
			History []struct {
				Location string `json:"location"`
			} `json:"history"`
		} `json:"data"`
	}
	if err := x.do(ctx, http.MethodGet, "/api/shipments2/track/"+url.PathEscape(awb), headers, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("xpressbees: no tracking data for %s", awb)
	}
	t := &Tracking{
		AWB:       awb,
		RawStatus: resp.Data.Status,
		Status:    xpressbeesStatuses.lookup(strings.ReplaceAll(resp.Data.Status, "_", " ")),
	}
	if len(resp.Data.History) > 0 {
		t.Location = resp.Data.History[0].Location
	}
	return t, nil
}

func (x *Xpressbees) Cancel(ctx context.Context, awb string) error {
	headers, err := x.auth(ctx)
	if err != nil {
		return err
	}
	var resp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
	}
	if err := x.do(ctx, http.MethodPost, "/api/shipments2/cancel", headers, map[string]string{"awb": awb}, &resp); err != nil {
		return err
	}
	if !resp.Status {
		return fmt.Errorf("xpressbees refused cancellation: %s", resp.Message)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
