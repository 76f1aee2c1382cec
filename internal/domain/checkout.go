package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CheckoutSessionStatus string

const (
	CheckoutOpen      CheckoutSessionStatus = "open"
	CheckoutCompleted CheckoutSessionStatus = "completed"
)

// CheckoutSession is the short-lived cart state behind the storefront checkout widget
type CheckoutSession struct {
	ID             uuid.UUID
	Shop           string
	Items          []CheckoutItem
	Phone          string // E.164 once the customer is identified
	Status         CheckoutSessionStatus
	PaymentMethod  string
	ShopifyOrderID string
	OrderName      string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CheckoutItem struct {
	VariantID int64           `json:"variantId"`
	Quantity  int             `json:"quantity"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
}

// IsExpired reports whether the session can no longer be used
func (s *CheckoutSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Subtotal sums item prices
func (s *CheckoutSession) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// CheckoutCustomer is keyed by (shop, phone) and remembered across sessions until ExpiresAt
type CheckoutCustomer struct {
	ID        uuid.UUID
	Shop      string
	Phone     string
	Name      string
	Email     string
	Addresses []CustomerAddress
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CustomerAddress struct {
	ID        string `json:"id"`
	Address
	IsDefault bool `json:"isDefault"`
}

// FindAddress returns the address with id
func (c *CheckoutCustomer) FindAddress(id string) (*CustomerAddress, bool) {
	for i := range c.Addresses {
		if c.Addresses[i].ID == id {
			return &c.Addresses[i], true
		}
	}
	return nil, false
}
