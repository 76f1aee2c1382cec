package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jafarshop/opsapi/internal/courier"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/service"
)

type BusinessResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerUID  string    `json:"ownerUid"`
	CreatedAt time.Time `json:"createdAt"`
}

func toBusiness(b *domain.Business) BusinessResponse {
	return BusinessResponse{ID: b.ID, Name: b.Name, OwnerUID: b.OwnerUID, CreatedAt: b.CreatedAt}
}

type MemberResponse struct {
	UID      string            `json:"uid"`
	Email    string            `json:"email,omitempty"`
	Role     domain.MemberRole `json:"role"`
	IsActive bool              `json:"isActive"`
}

func toMember(m *domain.BusinessMember) MemberResponse {
	return MemberResponse{UID: m.UID, Email: m.Email, Role: m.Role, IsActive: m.IsActive}
}

// OrderResponse represents an order in the dashboard
type OrderResponse struct {
	ID                string                 `json:"id"`
	ShopifyOrderID    int64                  `json:"shopifyOrderId"`
	Name              string                 `json:"name"`
	Email             string                 `json:"email,omitempty"`
	Phone             string                 `json:"phone,omitempty"`
	CustomerName      string                 `json:"customerName,omitempty"`
	FinancialStatus   string                 `json:"financialStatus"`
	FulfillmentStatus string                 `json:"fulfillmentStatus,omitempty"`
	CustomStatus      domain.CustomStatus    `json:"customStatus"`
	PickupReady       bool                   `json:"pickupReady"`
	TotalPrice        decimal.Decimal        `json:"totalPrice"`
	Currency          string                 `json:"currency"`
	IsCOD             bool                   `json:"isCod"`
	PaymentGateways   []string               `json:"paymentGateways,omitempty"`
	AWB               string                 `json:"awb,omitempty"`
	Courier           string                 `json:"courier,omitempty"`
	TrackingURL       string                 `json:"trackingUrl,omitempty"`
	LineItems         []domain.OrderLineItem `json:"lineItems"`
	ShippingAddress   *domain.Address        `json:"shippingAddress,omitempty"`
	CancelledAt       *time.Time             `json:"cancelledAt,omitempty"`
	DeliveredAt       *time.Time             `json:"deliveredAt,omitempty"`
	ShopifyCreatedAt  time.Time              `json:"shopifyCreatedAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
	Logs              []StatusLogResponse    `json:"customStatusesLogs,omitempty"`
}

type StatusLogResponse struct {
	Status         domain.CustomStatus `json:"status"`
	PreviousStatus domain.CustomStatus `json:"previousStatus,omitempty"`
	Remarks        string              `json:"remarks,omitempty"`
	CreatedBy      string              `json:"createdBy"`
	CreatedAt      time.Time           `json:"createdAt"`
}

func toOrder(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:                o.ID.String(),
		ShopifyOrderID:    o.ShopifyOrderID,
		Name:              o.Name,
		Email:             o.Email,
		Phone:             o.Phone,
		CustomerName:      o.CustomerName,
		FinancialStatus:   o.FinancialStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		CustomStatus:      o.CustomStatus,
		PickupReady:       o.PickupReady,
		TotalPrice:        o.TotalPrice,
		Currency:          o.Currency,
		IsCOD:             o.IsCOD,
		PaymentGateways:   o.PaymentGateways,
		AWB:               o.AWB,
		Courier:           o.Courier,
		LineItems:         o.LineItems,
		ShippingAddress:   o.ShippingAddress,
		CancelledAt:       o.CancelledAt,
		DeliveredAt:       o.DeliveredAt,
		ShopifyCreatedAt:  o.ShopifyCreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	if o.AWB != "" {
		resp.TrackingURL = courier.TrackingURL(o.Courier, o.AWB)
	}
	if resp.LineItems == nil {
		resp.LineItems = []domain.OrderLineItem{}
	}
	return resp
}

func toOrderDetail(d *service.OrderDetail) OrderResponse {
	resp := toOrder(d.Order)
	resp.Logs = make([]StatusLogResponse, 0, len(d.Logs))
	for _, l := range d.Logs {
		resp.Logs = append(resp.Logs, StatusLogResponse{
			Status:         l.Status,
			PreviousStatus: l.PreviousStatus,
			Remarks:        l.Remarks,
			CreatedBy:      l.CreatedBy,
			CreatedAt:      l.CreatedAt,
		})
	}
	return resp
}

func toOrders(orders []*domain.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrder(o))
	}
	return out
}

type TrackingResponse struct {
	OrderID      string              `json:"orderId"`
	AWB          string              `json:"awb"`
	Courier      string              `json:"courier"`
	TrackingURL  string              `json:"trackingUrl"`
	RawStatus    string              `json:"rawStatus"`
	MappedStatus domain.CustomStatus `json:"mappedStatus,omitempty"`
	CustomStatus domain.CustomStatus `json:"customStatus"`
	Location     string              `json:"location,omitempty"`
	ScannedAt    *time.Time          `json:"scannedAt,omitempty"`
}

func toTracking(t *courier.Tracking, o *domain.Order) TrackingResponse {
	return TrackingResponse{
		OrderID:      o.ID.String(),
		AWB:          t.AWB,
		Courier:      o.Courier,
		TrackingURL:  courier.TrackingURL(o.Courier, t.AWB),
		RawStatus:    t.RawStatus,
		MappedStatus: t.Status,
		CustomStatus: o.CustomStatus,
		Location:     t.Location,
		ScannedAt:    t.ScannedAt,
	}
}

type ProductResponse struct {
	ID              uuid.UUID               `json:"id"`
	SKU             string                  `json:"sku"`
	Name            string                  `json:"name"`
	Category        string                  `json:"category,omitempty"`
	Price           decimal.Decimal         `json:"price"`
	WeightGrams     int                     `json:"weightGrams"`
	VariantMappings []domain.VariantMapping `json:"variantMappingDetails"`
	MappedVariants  []string                `json:"mappedVariants"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

func toProduct(p *domain.Product) ProductResponse {
	resp := ProductResponse{
		ID:              p.ID,
		SKU:             p.SKU,
		Name:            p.Name,
		Category:        p.Category,
		Price:           p.Price,
		WeightGrams:     p.WeightGrams,
		VariantMappings: p.VariantMappings,
		MappedVariants:  p.MappedVariants,
		UpdatedAt:       p.UpdatedAt,
	}
	if resp.VariantMappings == nil {
		resp.VariantMappings = []domain.VariantMapping{}
	}
	if resp.MappedVariants == nil {
		resp.MappedVariants = []string{}
	}
	return resp
}

type SupplierResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Phone   string    `json:"phone,omitempty"`
	Email   string    `json:"email,omitempty"`
	Address string    `json:"address,omitempty"`
}

func toSupplier(s *domain.Supplier) SupplierResponse {
	return SupplierResponse{ID: s.ID, Name: s.Name, Phone: s.Phone, Email: s.Email, Address: s.Address}
}

type WarehouseResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Code    string    `json:"code"`
	Address string    `json:"address,omitempty"`
}

func toWarehouse(w *domain.Warehouse) WarehouseResponse {
	return WarehouseResponse{ID: w.ID, Name: w.Name, Code: w.Code, Address: w.Address}
}

type PurchaseOrderResponse struct {
	ID           uuid.UUID                  `json:"id"`
	Number       string                     `json:"number"`
	SupplierID   uuid.UUID                  `json:"supplierId"`
	WarehouseID  uuid.UUID                  `json:"warehouseId"`
	Status       domain.POStatus            `json:"status"`
	ExpectedDate *time.Time                 `json:"expectedDate,omitempty"`
	Notes        string                     `json:"notes,omitempty"`
	Items        []domain.PurchaseOrderItem `json:"items"`
	TotalAmount  decimal.Decimal            `json:"totalAmount"`
	CreatedBy    string                     `json:"createdBy"`
	StatusLogs   []domain.POStatusLog       `json:"statusLogs"`
	CreatedAt    time.Time                  `json:"createdAt"`
	UpdatedAt    time.Time                  `json:"updatedAt"`
}

func toPurchaseOrder(po *domain.PurchaseOrder) PurchaseOrderResponse {
	return PurchaseOrderResponse{
		ID:           po.ID,
		Number:       po.Number,
		SupplierID:   po.SupplierID,
		WarehouseID:  po.WarehouseID,
		Status:       po.Status,
		ExpectedDate: po.ExpectedDate,
		Notes:        po.Notes,
		Items:        po.Items,
		TotalAmount:  po.TotalAmount,
		CreatedBy:    po.CreatedBy,
		StatusLogs:   po.StatusLogs,
		CreatedAt:    po.CreatedAt,
		UpdatedAt:    po.UpdatedAt,
	}
}

type GRNResponse struct {
	ID              uuid.UUID        `json:"id"`
	Number          string           `json:"number"`
	PurchaseOrderID uuid.UUID        `json:"purchaseOrderId"`
	PONumber        string           `json:"poNumber"`
	WarehouseID     uuid.UUID        `json:"warehouseId"`
	ReceivedBy      string           `json:"receivedBy"`
	ReceivedAt      time.Time        `json:"receivedAt"`
	Notes           string           `json:"notes,omitempty"`
	Items           []domain.GRNItem `json:"items"`
}

func toGRN(g *domain.GRN) GRNResponse {
	return GRNResponse{
		ID:              g.ID,
		Number:          g.Number,
		PurchaseOrderID: g.PurchaseOrderID,
		PONumber:        g.PONumber,
		WarehouseID:     g.WarehouseID,
		ReceivedBy:      g.ReceivedBy,
		ReceivedAt:      g.ReceivedAt,
		Notes:           g.Notes,
		Items:           g.Items,
	}
}

type UPCResponse struct {
	ID              uuid.UUID           `json:"id"`
	SKU             string              `json:"sku"`
	WarehouseID     uuid.UUID           `json:"warehouseId"`
	GRNID           *uuid.UUID          `json:"grnId,omitempty"`
	PurchaseOrderID *uuid.UUID          `json:"purchaseOrderId,omitempty"`
	PutAway         domain.PutAwayState `json:"putAway"`
	Location        string              `json:"location,omitempty"`
	Shop            string              `json:"shop,omitempty"`
	OrderID         *uuid.UUID          `json:"orderId,omitempty"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func toUPCs(upcs []*domain.UPC) []UPCResponse {
	out := make([]UPCResponse, 0, len(upcs))
	for _, u := range upcs {
		out = append(out, UPCResponse{
			ID:              u.ID,
			SKU:             u.SKU,
			WarehouseID:     u.WarehouseID,
			GRNID:           u.GRNID,
			PurchaseOrderID: u.PurchaseOrderID,
			PutAway:         u.PutAway,
			Location:        u.Location,
			Shop:            u.Shop,
			OrderID:         u.OrderID,
			UpdatedAt:       u.UpdatedAt,
		})
	}
	return out
}

type TemplateResponse struct {
	ID           uuid.UUID            `json:"id"`
	Name         string               `json:"name"`
	LanguageCode string               `json:"languageCode"`
	Event        domain.TemplateEvent `json:"event"`
	BodyParams   []string             `json:"bodyParams"`
	Active       bool                 `json:"active"`
}

func toTemplate(t *domain.WhatsAppTemplate) TemplateResponse {
	resp := TemplateResponse{ID: t.ID, Name: t.Name, LanguageCode: t.LanguageCode, Event: t.Event, BodyParams: t.BodyParams, Active: t.Active}
	if resp.BodyParams == nil {
		resp.BodyParams = []string{}
	}
	return resp
}

type SessionResponse struct {
	ID             uuid.UUID                    `json:"id"`
	Items          []domain.CheckoutItem        `json:"items"`
	Status         domain.CheckoutSessionStatus `json:"status"`
	Identified     bool                         `json:"identified"`
	PaymentMethod  string                       `json:"paymentMethod,omitempty"`
	ShopifyOrderID string                       `json:"shopifyOrderId,omitempty"`
	OrderName      string                       `json:"orderName,omitempty"`
	ExpiresAt      time.Time                    `json:"expiresAt"`
}

func toSession(s *domain.CheckoutSession) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		Items:          s.Items,
		Status:         s.Status,
		Identified:     s.Phone != "",
		PaymentMethod:  s.PaymentMethod,
		ShopifyOrderID: s.ShopifyOrderID,
		OrderName:      s.OrderName,
		ExpiresAt:      s.ExpiresAt,
	}
}

type CustomerResponse struct {
	Phone     string                   `json:"phone"`
	Name      string                   `json:"name,omitempty"`
	Email     string                   `json:"email,omitempty"`
	Addresses []domain.CustomerAddress `json:"addresses"`
}

func toCustomer(c *domain.CheckoutCustomer) CustomerResponse {
	resp := CustomerResponse{Phone: c.Phone, Name: c.Name, Email: c.Email, Addresses: c.Addresses}
	if resp.Addresses == nil {
		resp.Addresses = []domain.CustomerAddress{}
	}
	return resp
}

// ReturnLineItem is an order line as shown to a customer starting a return
type ReturnLineItem struct {
	LineItemID int64  `json:"lineItemId"`
	SKU        string `json:"sku"`
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	Returnable int    `json:"returnable"`
}

type ReturnEligibilityResponse struct {
	OrderName string           `json:"orderName"`
	Status    string           `json:"status"`
	Eligible  bool             `json:"eligible"`
	Reason    string           `json:"reason,omitempty"`
	ExpiresAt *time.Time       `json:"expiresAt,omitempty"`
	Items     []ReturnLineItem `json:"items"`
}

// toEligibility shows only what the customer already knows about their order
func toEligibility(e *service.ReturnEligibility) ReturnEligibilityResponse {
	resp := ReturnEligibilityResponse{
		OrderName: e.Order.Name,
		Status:    string(e.Order.CustomStatus),
		Eligible:  e.Eligible,
		Reason:    e.Reason,
		ExpiresAt: e.ExpiresAt,
		Items:     make([]ReturnLineItem, 0, len(e.Order.LineItems)),
	}
	for _, li := range e.Order.LineItems {
		left := li.Quantity - e.Returned[li.ShopifyLineItemID]
		if left < 0 {
			left = 0
		}
		resp.Items = append(resp.Items, ReturnLineItem{
			LineItemID: li.ShopifyLineItemID,
			SKU:        li.SKU,
			Title:      li.Title,
			Quantity:   li.Quantity,
			Returnable: left,
		})
	}
	return resp
}

type ReturnResponse struct {
	ID        uuid.UUID           `json:"id"`
	OrderName string              `json:"orderName"`
	Items     []domain.ReturnItem `json:"items"`
	Reason    string              `json:"reason"`
	Status    string              `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
}

func toReturn(r *domain.ReturnRequest) ReturnResponse {
	return ReturnResponse{ID: r.ID, OrderName: r.OrderName, Items: r.Items, Reason: r.Reason, Status: r.Status, CreatedAt: r.CreatedAt}
}
