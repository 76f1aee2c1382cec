package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Business is the tenant that owns products, purchasing and inventory
type Business struct {
	ID        uuid.UUID
	Name      string
	OwnerUID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BusinessMember links an identity-provider user to a business
type BusinessMember struct {
	BusinessID uuid.UUID
	UID        string
	Email      string
	Role       MemberRole
	IsActive   bool
	CreatedAt  time.Time
}

// Store represents a connected Shopify shop
type Store struct {
	Shop         string // myshopify domain, primary key
	BusinessID   *uuid.UUID
	Name         string
	AccessToken  string
	APIVersion   string
	AutoCapture  bool
	Integrations StoreIntegrations
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StoreMember grants a user direct access to a single store
type StoreMember struct {
	Shop      string
	UID       string
	Role      MemberRole
	CreatedAt time.Time
}

// StoreIntegrations is stored as JSONB on the store row
type StoreIntegrations struct {
	Interakt       *InteraktCredentials          `json:"interakt,omitempty"`
	Couriers       map[string]CourierCredentials `json:"couriers,omitempty"`
	DefaultCourier string                        `json:"defaultCourier,omitempty"`
}

type InteraktCredentials struct {
	APIKey string `json:"apiKey"`
}

// CourierCredentials covers the union of fields the supported couriers need
type CourierCredentials struct {
	Token          string `json:"token,omitempty"`
	Username       string `json:"username,omitempty"`
	Password       string `json:"password,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
	ClientSecret   string `json:"clientSecret,omitempty"`
	LoginID        string `json:"loginId,omitempty"`
	PickupLocation string `json:"pickupLocation,omitempty"`
	Enabled        bool   `json:"enabled"`
}

// ServiceKey authenticates machine callers of internal routes
type ServiceKey struct {
	ID        uuid.UUID
	Name      string
	KeyHash   string // bcrypt
	KeyLookup string // SHA256(key) hex for fast lookup
	IsActive  bool
	CreatedAt time.Time
}

// APIKeyLookupHash is the SHA256 hex used to find a key before bcrypt verification
func APIKeyLookupHash(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}

// Order mirrors a Shopify order plus merchant-side derived fields
type Order struct {
	ID                uuid.UUID
	Shop              string
	ShopifyOrderID    int64
	Name              string // "#1001"
	Email             string
	Phone             string
	CustomerName      string
	FinancialStatus   string
	FulfillmentStatus string
	CustomStatus      CustomStatus
	PickupReady       bool
	TotalPrice        decimal.Decimal
	Currency          string
	PaymentGateways   []string
	IsCOD             bool
	LineItems         []OrderLineItem
	ShippingAddress   *Address
	AWB               string
	Courier           string
	CancelledAt       *time.Time
	DeliveredAt       *time.Time
	ShopifyCreatedAt  time.Time
	ShopifyUpdatedAt  time.Time
	Raw               json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type OrderLineItem struct {
	ShopifyLineItemID int64           `json:"shopifyLineItemId"`
	ProductID         int64           `json:"productId"`
	VariantID         int64           `json:"variantId"`
	SKU               string          `json:"sku"`
	Title             string          `json:"title"`
	VariantTitle      string          `json:"variantTitle,omitempty"`
	Quantity          int             `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
}

type Address struct {
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	Province    string `json:"province,omitempty"`
	Zip         string `json:"zip"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
}

// OneLine renders the address on a single line for slips and courier manifests
func (a *Address) OneLine() string {
	if a == nil {
		return ""
	}
	parts := []string{a.Address1, a.Address2, a.City, a.Province, a.Zip, a.Country}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ", ")
}

// TotalQuantity returns the unit count across line items
func (o *Order) TotalQuantity() int {
	n := 0
	for _, li := range o.LineItems {
		n += li.Quantity
	}
	return n
}

// OrderStatusLog is an append-only audit entry of custom status changes
type OrderStatusLog struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	Status         CustomStatus
	PreviousStatus CustomStatus
	Remarks        string
	CreatedBy      string // uid, "shopify", "courier:<name>" or "customer"
	CreatedAt      time.Time
}

// Product is a business-side catalog entry keyed by SKU
type Product struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	SKU             string
	Name            string
	Category        string
	Price           decimal.Decimal
	WeightGrams     int
	VariantMappings []VariantMapping
	MappedVariants  []string // VariantKey cache for lookups
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// VariantMapping links a store variant to a business SKU
type VariantMapping struct {
	Shop         string    `json:"shop"`
	VariantID    int64     `json:"variantId"`
	ProductTitle string    `json:"productTitle,omitempty"`
	VariantTitle string    `json:"variantTitle,omitempty"`
	MappedAt     time.Time `json:"mappedAt"`
}

// VariantKey is the mappedVariants cache entry for a store variant
func VariantKey(shop string, variantID int64) string {
	return fmt.Sprintf("%s:%d", shop, variantID)
}

// HasVariant reports whether the store variant is mapped to this product
func (p *Product) HasVariant(shop string, variantID int64) bool {
	key := VariantKey(shop, variantID)
	for _, k := range p.MappedVariants {
		if k == key {
			return true
		}
	}
	return false
}

// AddVariant records a mapping; returns false if already present
func (p *Product) AddVariant(m VariantMapping) bool {
	if p.HasVariant(m.Shop, m.VariantID) {
		return false
	}
	p.VariantMappings = append(p.VariantMappings, m)
	p.MappedVariants = append(p.MappedVariants, VariantKey(m.Shop, m.VariantID))
	return true
}

// RemoveVariant drops a mapping; returns false if it was not present
func (p *Product) RemoveVariant(shop string, variantID int64) bool {
	key := VariantKey(shop, variantID)
	found := false
	mappings := p.VariantMappings[:0]
	for _, m := range p.VariantMappings {
		if m.Shop == shop && m.VariantID == variantID {
			found = true
			continue
		}
		mappings = append(mappings, m)
	}
	p.VariantMappings = mappings
	keys := p.MappedVariants[:0]
	for _, k := range p.MappedVariants {
		if k != key {
			keys = append(keys, k)
		}
	}
	p.MappedVariants = keys
	return found
}

// WhatsAppTemplate is a pre-approved Interakt template configured for a store
type WhatsAppTemplate struct {
	ID           uuid.UUID
	Shop         string
	Name         string
	LanguageCode string
	Event        TemplateEvent
	BodyParams   []string // placeholder tokens resolved per order
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdempotencyKey stores idempotency information for create endpoints
type IdempotencyKey struct {
	Key          string
	Scope        string // request path the key was used on
	ResourceType string
	ResourceID   string
	RequestHash  string
	CreatedAt    time.Time
}

// ReturnRequest is a customer-initiated return (DTO) raised through the storefront
type ReturnRequest struct {
	ID        uuid.UUID
	Shop      string
	OrderID   uuid.UUID
	OrderName string
	Phone     string
	Items     []ReturnItem
	Reason    string
	Status    string
	CreatedAt time.Time
}

type ReturnItem struct {
	LineItemID int64  `json:"lineItemId"`
	SKU        string `json:"sku"`
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
}
