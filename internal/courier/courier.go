// Package courier wraps the shipping partners' APIs behind one interface.
package courier

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jafarshop/opsapi/internal/domain"
)

// Shipment is what we hand a courier to book a pickup
type Shipment struct {
	OrderID        string // our order id, used as the courier's reference
	OrderName      string
	OrderDate      time.Time
	Consignee      Consignee
	Items          []Item
	Total          decimal.Decimal
	COD            bool
	WeightGrams    int
	PickupLocation string
}

type Consignee struct {
	Name     string
	Phone    string
	Email    string
	Address1 string
	Address2 string
	City     string
	State    string
	Pincode  string
	Country  string
}

type Item struct {
	SKU      string
	Name     string
	Quantity int
	Price    decimal.Decimal
}

// Booking is the result of a successful shipment creation
type Booking struct {
	AWB         string
	Courier     string
	TrackingURL string
}

// Tracking is the latest courier scan for an AWB
type Tracking struct {
	AWB         string
	RawStatus   string
	Status      domain.CustomStatus // empty when the scan does not move the order
	Location    string
	ScannedAt   *time.Time
	DeliveredAt *time.Time
}

// Client is one courier account
type Client interface {
	Name() string
	CreateShipment(ctx context.Context, s Shipment) (*Booking, error)
	Track(ctx context.Context, awb string) (*Tracking, error)
	Cancel(ctx context.Context, awb string) error
}

// statusTable maps lowercased courier status text to a custom status
type statusTable map[string]domain.CustomStatus

func (t statusTable) lookup(raw string) domain.CustomStatus {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := t[key]; ok {
		return s
	}
	return ""
}

func (s Shipment) totalQuantity() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

func (s Shipment) description() string {
	names := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		names = append(names, it.Name)
	}
	return strings.Join(names, ", ")
}

func (s Shipment) weightKg() float64 {
	g := s.WeightGrams
	if g <= 0 {
		g = 500
	}
	return float64(g) / 1000
}

func (s Shipment) codAmount() decimal.Decimal {
	if s.COD {
		return s.Total
	}
	return decimal.Zero
}

func (s Shipment) paymentMode() string {
	if s.COD {
		return "COD"
	}
	return "Prepaid"
}

var trackingURLs = map[string]string{
	domain.CourierDelhivery:  "https://www.delhivery.com/track/package/",
	domain.CourierShiprocket: "https://shiprocket.co/tracking/",
	domain.CourierXpressbees: "https://www.xpressbees.com/shipment/tracking?awbNo=",
	domain.CourierBluedart:   "https://www.bluedart.com/tracking?trackFor=0&trackNo=",
}

// TrackingURL is the public tracking page for an AWB, empty for unknown couriers
func TrackingURL(courierName, awb string) string {
	prefix, ok := trackingURLs[courierName]
	if !ok || awb == "" {
		return ""
	}
	return prefix + awb
}
