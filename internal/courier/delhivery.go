package courier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
)

var delhiveryStatuses = statusTable{
	"picked up":        domain.StatusDispatched,
	"in transit":       domain.StatusInTransit,
	"pending":          domain.StatusInTransit,
	"dispatched":       domain.StatusOutForDelivery,
	"out for delivery": domain.StatusOutForDelivery,
	"delivered":        domain.StatusDelivered,
	"lost":             domain.StatusLost,
}

// Delhivery uses a static API token
type Delhivery struct {
	httpClient
	token          string
	pickupLocation string
}

func NewDelhivery(baseURL string, creds domain.CourierCredentials, logger *zap.Logger) *Delhivery {
	return &Delhivery{
		httpClient:     newHTTPClient(domain.CourierDelhivery, baseURL, logger),
		token:          creds.Token,
		pickupLocation: creds.PickupLocation,
	}
}

func (d *Delhivery) Name() string { return domain.CourierDelhivery }

func (d *Delhivery) headers() map[string]string {
	return map[string]string{"Authorization": "Token " + d.token}
}

type delhiveryShipment struct {
	Name         string `json:"name"`
	Add          string `json:"add"`
	Pin          string `json:"pin"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	Phone        string `json:"phone"`
	Order        string `json:"order"`
	PaymentMode  string `json:"payment_mode"`
	CODAmount    string `json:"cod_amount"`
	TotalAmount  string `json:"total_amount"`
	ProductsDesc string `json:"products_desc"`
	Quantity     string `json:"quantity"`
	Weight       string `json:"weight"`
}

func (d *Delhivery) CreateShipment(ctx context.Context, s Shipment) (*Booking, error) {
	pickup := s.PickupLocation
	if pickup == "" {
		pickup = d.pickupLocation
	}
	payload := map[string]interface{}{
		"shipments": []delhiveryShipment{{
			Name:         s.Consignee.Name,
			Add:          strings.TrimSpace(s.Consignee.Address1 + " " + s.Consignee.Address2),
			Pin:          s.Consignee.Pincode,
			City:         s.Consignee.City,
			State:        s.Consignee.State,
			Country:      s.Consignee.Country,
			Phone:        s.Consignee.Phone,
			Order:        s.OrderName,
			PaymentMode:  s.paymentMode(),
			CODAmount:    s.codAmount().StringFixed(2),
			TotalAmount:  s.Total.StringFixed(2),
			ProductsDesc: s.description(),
			Quantity:     fmt.Sprintf("%d", s.totalQuantity()),
			Weight:       fmt.Sprintf("%d", s.WeightGrams),
		}},
		"pickup_location": map[string]string{"name": pickup},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	form := url.Values{"format": {"json"}, "data": {string(data)}}

	var resp struct {
		Success  bool   `json:"success"`
		Rmk      string `json:"rmk"`
		Packages []struct {
			Waybill string   `json:"waybill"`
			Status  string   `json:"status"`
			Remarks []string `json:"remarks"`
		} `json:"packages"`
	}
	if err := d.do(ctx, http.MethodPost, "/api/cmu/create.json", d.headers(), formBody(form.Encode()), &resp); err != nil {
		return nil, err
	}
	if !resp.Success || len(resp.Packages) == 0 || resp.Packages[0].Waybill == "" {
		msg := resp.Rmk
		if len(resp.Packages) > 0 && len(resp.Packages[0].Remarks) > 0 {
			msg = strings.Join(resp.Packages[0].Remarks, "; ")
		}
		return nil, fmt.Errorf("delhivery rejected shipment: %s", msg)
	}
	awb := resp.Packages[0].Waybill
	return &Booking{AWB: awb, Courier: d.Name(), TrackingURL: TrackingURL(domain.CourierDelhivery, awb)}, nil
}

func (d *Delhivery) Track(ctx context.Context, awb string) (*Tracking, error) {
	var resp struct {
		ShipmentData []struct {
			Shipment struct {
				AWB    string `json:"AWB"`
				Status struct {
					Status         string `json:"Status"`
					StatusType     string `json:"StatusType"`
					StatusLocation string `json:"StatusLocation"`
					StatusDateTime string `json:"StatusDateTime"`
				} `json:"Status"`
			} `json:"Shipment"`
		} `json:"ShipmentData"`
	}
	path := "/api/v1/packages/json/?waybill=" + url.QueryEscape(awb)
	if err := d.do(ctx, http.MethodGet, path, d.headers(), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.ShipmentData) == 0 {
		return nil, fmt.Errorf("delhivery: no tracking data for %s", awb)
	}
	st := resp.ShipmentData[0].Shipment.Status
	t := &Tracking{
		AWB:       awb,
		RawStatus: st.Status,
		Status:    delhiveryStatus(st.Status, st.StatusType),
		Location:  st.StatusLocation,
	}
	if ts, err := time.Parse("2006-01-02T15:04:05", strings.Split(st.StatusDateTime, ".")[0]); err == nil {
		t.ScannedAt = &ts
		if t.Status == domain.StatusDelivered {
			t.DeliveredAt = &ts
		}
	}
	return t, nil
}

// delhiveryStatus takes the status type into account: RT scans belong to the return leg
func delhiveryStatus(status, statusType string) domain.CustomStatus {
	if strings.EqualFold(statusType, "RT") {
		if strings.EqualFold(status, "delivered") || strings.EqualFold(status, "rto") {
			return domain.StatusRTODelivered
		}
		return domain.StatusRTOInTransit
	}
	if strings.EqualFold(statusType, "DL") && strings.EqualFold(status, "rto") {
		return domain.StatusRTODelivered
	}
	return delhiveryStatuses.lookup(status)
}

func (d *Delhivery) Cancel(ctx context.Context, awb string) error {
	var resp struct {
		Status bool   `json:"status"`
		Remark string `json:"remark"`
	}
	body := map[string]string{"waybill": awb, "cancellation": "true"}
	if err := d.do(ctx, http.MethodPost, "/api/p/edit", d.headers(), body, &resp); err != nil {
		return err
	}
	if !resp.Status {
		return fmt.Errorf("delhivery refused cancellation: %s", resp.Remark)
	}
	return nil
}
