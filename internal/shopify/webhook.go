package shopify

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jafarshop/opsapi/internal/domain"
)

// Webhook topics handled by the orders endpoint
const (
	TopicOrdersCreate  = "orders/create"
	TopicOrdersUpdated = "orders/updated"
	TopicOrdersDelete  = "orders/delete"
)

// OrderPayload is the subset of the REST order resource sent in order webhooks
type OrderPayload struct {
	ID                  int64             `json:"id"`
	Name                string            `json:"name"`
	Email               string            `json:"email"`
	Phone               string            `json:"phone"`
	FinancialStatus     string            `json:"financial_status"`
	FulfillmentStatus   string            `json:"fulfillment_status"`
	TotalPrice          decimal.Decimal   `json:"total_price"`
	Currency            string            `json:"currency"`
	PaymentGatewayNames []string          `json:"payment_gateway_names"`
	CancelledAt         *time.Time        `json:"cancelled_at"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
	Customer            *CustomerPayload  `json:"customer"`
	ShippingAddress     *AddressPayload   `json:"shipping_address"`
	LineItems           []LineItemPayload `json:"line_items"`
}

type CustomerPayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type AddressPayload struct {
	Name        string `json:"name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	Province    string `json:"province"`
	Zip         string `json:"zip"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
}

type LineItemPayload struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	VariantID    int64           `json:"variant_id"`
	SKU          string          `json:"sku"`
	Title        string          `json:"title"`
	VariantTitle string          `json:"variant_title"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
}

// IsCOD reports whether any gateway is cash on delivery
func IsCOD(gateways []string) bool {
	for _, g := range gateways {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "cod" || strings.Contains(g, "cash on delivery") || strings.Contains(g, "cash_on_delivery") {
			return true
		}
	}
	return false
}

// ApplyTo copies the Shopify-owned fields onto o. Merchant-side fields
// (custom status, AWB, courier, pickup flag) are left untouched.
func (p *OrderPayload) ApplyTo(o *domain.Order, shop string, raw []byte) {
	o.Shop = shop
	o.ShopifyOrderID = p.ID
	o.Name = p.Name
	o.Email = p.Email
	o.Phone = p.Phone
	o.FinancialStatus = p.FinancialStatus
	o.FulfillmentStatus = p.FulfillmentStatus
	o.TotalPrice = p.TotalPrice
	o.Currency = p.Currency
	o.PaymentGateways = p.PaymentGatewayNames
	o.IsCOD = IsCOD(p.PaymentGatewayNames)
	o.CancelledAt = p.CancelledAt
	o.ShopifyCreatedAt = p.CreatedAt
	o.ShopifyUpdatedAt = p.UpdatedAt
	o.Raw = raw

	if p.Customer != nil {
		o.CustomerName = strings.TrimSpace(p.Customer.FirstName + " " + p.Customer.LastName)
		if o.Email == "" {
			o.Email = p.Customer.Email
		}
		if o.Phone == "" {
			o.Phone = p.Customer.Phone
		}
	}

	o.ShippingAddress = nil
	if a := p.ShippingAddress; a != nil {
		name := a.Name
		if name == "" {
			name = strings.TrimSpace(a.FirstName + " " + a.LastName)
		}
		o.ShippingAddress = &domain.Address{
			Name:        name,
			Phone:       a.Phone,
			Address1:    a.Address1,
			Address2:    a.Address2,
			City:        a.City,
			Province:    a.Province,
			Zip:         a.Zip,
			Country:     a.Country,
			CountryCode: a.CountryCode,
		}
		if o.CustomerName == "" {
			o.CustomerName = name
		}
		if o.Phone == "" {
			o.Phone = a.Phone
		}
	}

	o.LineItems = make([]domain.OrderLineItem, 0, len(p.LineItems))
	for _, li := range p.LineItems {
		o.LineItems = append(o.LineItems, domain.OrderLineItem{
			ShopifyLineItemID: li.ID,
			ProductID:         li.ProductID,
			VariantID:         li.VariantID,
			SKU:               li.SKU,
			Title:             li.Title,
			VariantTitle:      li.VariantTitle,
			Quantity:          li.Quantity,
			Price:             li.Price,
		})
	}
}

// DeletePayload is the body of orders/delete
type DeletePayload struct {
	ID int64 `json:"id"`
}
