package courier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
)

var shiprocketStatuses = statusTable{
	"picked up":        domain.StatusDispatched,
	"shipped":          domain.StatusDispatched,
	"in transit":       domain.StatusInTransit,
	"out for delivery": domain.StatusOutForDelivery,
	"delivered":        domain.StatusDelivered,
	"rto initiated":    domain.StatusRTOInTransit,
	"rto in transit":   domain.StatusRTOInTransit,
	"rto delivered":    domain.StatusRTODelivered,
	"lost":             domain.StatusLost,
}

// Shiprocket logs in with email/password and reuses the token until it expires
type Shiprocket struct {
	httpClient
	email          string
	password       string
	pickupLocation string

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewShiprocket(baseURL string, creds domain.CourierCredentials, logger *zap.Logger) *Shiprocket {
	return &Shiprocket{
		httpClient:     newHTTPClient(domain.CourierShiprocket, baseURL, logger),
		email:          creds.Username,
		password:       creds.Password,
		pickupLocation: creds.PickupLocation,
	}
}

func (s *Shiprocket) Name() string { return domain.CourierShiprocket }

func (s *Shiprocket) auth(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && time.Now().Before(s.tokenExp) {
		return map[string]string{"Authorization": "Bearer " + s.token}, nil
	}
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": s.email, "password": s.password}
	if err := s.do(ctx, http.MethodPost, "/v1/external/auth/login", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("shiprocket login: %w", err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("shiprocket login returned no token")
	}
	// tokens are valid for ten days
	s.token = resp.Token
	s.tokenExp = time.Now().Add(9 * 24 * time.Hour)
	return map[string]string{"Authorization": "Bearer " + s.token}, nil
}

type shiprocketOrderItem struct {
	Name         string `json:"name"`
	SKU          string `json:"sku"`
	Units        int    `json:"units"`
	SellingPrice string `json:"selling_price"`
}

func (s *Shiprocket) CreateShipment(ctx context.Context, sh Shipment) (*Booking, error) {
	headers, err := s.auth(ctx)
	if err != nil {
		return nil, err
	}
	pickup := sh.PickupLocation
	if pickup == "" {
		pickup = s.pickupLocation
	}
	items := make([]shiprocketOrderItem, 0, len(sh.Items))
	for _, it := range sh.Items {
		items = append(items, shiprocketOrderItem{Name: it.Name, SKU: it.SKU, Units: it.Quantity, SellingPrice: it.Price.StringFixed(2)})
	}
	first, last := splitName(sh.Consignee.Name)
	order := map[string]interface{}{
		"order_id":              sh.OrderName,
		"order_date":            sh.OrderDate.Format("2006-01-02 15:04"),
		"pickup_location":       pickup,
		"billing_customer_name": first,
		"billing_last_name":     last,
		"billing_address":       sh.Consignee.Address1,
		"billing_address_2":     sh.Consignee.Address2,
		"billing_city":          sh.Consignee.City,
		"billing_pincode":       sh.Consignee.Pincode,
		"billing_state":         sh.Consignee.State,
		"billing_country":       sh.Consignee.Country,
		"billing_email":         sh.Consignee.Email,
		"billing_phone":         sh.Consignee.Phone,
		"shipping_is_billing":   true,
		"order_items":           items,
		"payment_method":        sh.paymentMode(),
		"sub_total":             sh.Total.StringFixed(2),
		"length":                10,
		"breadth":               10,
		"height":                10,
		"weight":                sh.weightKg(),
	}
	var created struct {
		OrderID    int64  `json:"order_id"`
		ShipmentID int64  `json:"shipment_id"`
		Status     string `json:"status"`
	}
	if err := s.do(ctx, http.MethodPost, "/v1/external/orders/create/adhoc", headers, order, &created); err != nil {
		return nil, err
	}
	if created.ShipmentID == 0 {
		return nil, fmt.Errorf("shiprocket created no shipment for %s", sh.OrderName)
	}

	var assigned struct {
		AWBAssignStatus int `json:"awb_assign_status"`
		Response        struct {
			Data struct {
				AWBCode     string `json:"awb_code"`
				CourierName string `json:"courier_name"`
			} `json:"data"`
		} `json:"response"`
		Message string `json:"message"`
	}
	body := map[string]int64{"shipment_id": created.ShipmentID}
	if err := s.do(ctx, http.MethodPost, "/v1/external/courier/assign/awb", headers, body, &assigned); err != nil {
		return nil, err
	}
	awb := assigned.Response.Data.AWBCode
	if assigned.AWBAssignStatus != 1 || awb == "" {
		return nil, fmt.Errorf("shiprocket could not assign awb: %s", assigned.Message)
	}
	return &Booking{AWB: awb, Courier: s.Name(), TrackingURL: TrackingURL(domain.CourierShiprocket, awb)}, nil
}

func (s *Shiprocket) Track(ctx context.Context, awb string) (*Tracking, error) {
	headers, err := s.auth(ctx)
	if err != nil {
		return nil, err
	}
	var resp struct {
		TrackingData struct {
			TrackStatus   int `json:"track_status"`
			ShipmentTrack []struct {
				CurrentStatus string `json:"current_status"`
				DeliveredDate string `json:"delivered_date"`
				Destination   string `json:"destination"`
			} `json:"shipment_track"`
		} `json:"tracking_data"`
	}
	if err := s.do(ctx, http.MethodGet, "/v1/external/courier/track/awb/"+url.PathEscape(awb), headers, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.TrackingData.ShipmentTrack) == 0 {
		return nil, fmt.Errorf("shiprocket: no tracking data for %s", awb)
	}
	st := resp.TrackingData.ShipmentTrack[0]
	t := &Tracking{
		AWB:       awb,
		RawStatus: st.CurrentStatus,
		Status:    shiprocketStatuses.lookup(st.CurrentStatus),
		Location:  st.Destination,
	}
	if d, err := time.Parse("2006-01-02 15:04:05", st.DeliveredDate); err == nil {
		t.DeliveredAt = &d
	}
	return t, nil
}

func (s *Shiprocket) Cancel(ctx context.Context, awb string) error {
	headers, err := s.auth(ctx)
	if err != nil {
		return err
	}
	return s.do(ctx, http.MethodPost, "/v1/external/orders/cancel/shipment/awbs", headers, map[string][]string{"awbs": {awb}}, nil)
}

func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, " "); i > 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}
