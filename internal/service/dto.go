package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jafarshop/opsapi/internal/documents"
	"github.com/jafarshop/opsapi/internal/domain"
)

// Tenancy

type CreateBusinessRequest struct {
	Name string `json:"name" binding:"required,max=200"`
}

type AddMemberRequest struct {
	UID   string            `json:"uid" binding:"required"`
	Email string            `json:"email" binding:"omitempty,email"`
	Role  domain.MemberRole `json:"role" binding:"required,oneof=admin member"`
}

type LinkStoreRequest struct {
	Shop string `json:"shop" binding:"required"`
}

// Stores

type CourierCredentialsRequest struct {
	Courier     string                    `json:"courier" binding:"required"`
	Credentials domain.CourierCredentials `json:"credentials"`
	MakeDefault bool                      `json:"makeDefault"`
}

type InteraktRequest struct {
	APIKey string `json:"apiKey" binding:"required"`
}

type StoreSettingsRequest struct {
	Name        *string `json:"name"`
	AutoCapture *bool   `json:"autoCapture"`
}

// StoreView is a store with secrets masked
type StoreView struct {
	Shop           string                               `json:"shop"`
	Name           string                               `json:"name"`
	BusinessID     *uuid.UUID                           `json:"businessId,omitempty"`
	APIVersion     string                               `json:"apiVersion"`
	AutoCapture    bool                                 `json:"autoCapture"`
	InteraktSet    bool                                 `json:"interaktConfigured"`
	Couriers       map[string]domain.CourierCredentials `json:"couriers"`
	DefaultCourier string                               `json:"defaultCourier,omitempty"`
}

// Orders

type BulkStatusRequest struct {
	OrderIDs []uuid.UUID         `json:"orderIds" binding:"required,min=1,max=1000"`
	Status   domain.CustomStatus `json:"status" binding:"required"`
	Remarks  string              `json:"remarks"`
}

type StatusRequest struct {
	Status  domain.CustomStatus `json:"status" binding:"required"`
	Remarks string              `json:"remarks"`
}

// OrderResult is the per-order outcome of a bulk operation
type OrderResult struct {
	OrderID uuid.UUID           `json:"orderId"`
	OK      bool                `json:"ok"`
	Status  domain.CustomStatus `json:"status,omitempty"`
	AWB     string              `json:"awb,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type CancelOrderRequest struct {
	Reason  string `json:"reason" binding:"omitempty,oneof=customer inventory fraud declined other CUSTOMER INVENTORY FRAUD DECLINED OTHER"`
	Remarks string `json:"remarks"`
}

type PickupReadyRequest struct {
	Ready bool `json:"ready"`
}

type OrderIDsRequest struct {
	OrderIDs []uuid.UUID `json:"orderIds" binding:"required,min=1,max=200"`
}

type AssignAWBRequest struct {
	OrderIDs []uuid.UUID `json:"orderIds" binding:"required,min=1,max=100"`
	Courier  string      `json:"courier"`
}

// Products

type ProductRequest struct {
	SKU         string          `json:"sku" binding:"required,max=100"`
	Name        string          `json:"name" binding:"required,max=300"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	WeightGrams int             `json:"weightGrams" binding:"min=0"`
}

type MapVariantRequest struct {
	Shop         string `json:"shop" binding:"required"`
	VariantID    int64  `json:"variantId" binding:"required,gt=0"`
	ProductTitle string `json:"productTitle"`
	VariantTitle string `json:"variantTitle"`
	Force        bool   `json:"force"`
}

// Bulk upload modes
const (
	UploadCreate = "create"
	UploadUpdate = "update"
	UploadUpsert = "upsert"
)

type BulkUploadResult struct {
	Mode      string               `json:"mode"`
	Created   int                  `json:"created"`
	Updated   int                  `json:"updated"`
	Errors    []documents.RowError `json:"errors,omitempty"`
	ResultURL string               `json:"resultUrl,omitempty"`
}

// Purchasing

type SupplierRequest struct {
	Name    string `json:"name" binding:"required,max=200"`
	Phone   string `json:"phone"`
	Email   string `json:"email" binding:"omitempty,email"`
	Address string `json:"address"`
}

type WarehouseRequest struct {
	Name    string `json:"name" binding:"required,max=200"`
	Code    string `json:"code" binding:"required,max=50"`
	Address string `json:"address"`
}

type POItemRequest struct {
	SKU        string          `json:"sku" binding:"required"`
	OrderedQty int             `json:"orderedQty" binding:"required,gt=0"`
	UnitCost   decimal.Decimal `json:"unitCost"`
}

type CreatePORequest struct {
	SupplierID   uuid.UUID       `json:"supplierId" binding:"required"`
	WarehouseID  uuid.UUID       `json:"warehouseId" binding:"required"`
	ExpectedDate *time.Time      `json:"expectedDate"`
	Notes        string          `json:"notes"`
	Status       domain.POStatus `json:"status" binding:"omitempty,oneof=draft confirmed"`
	Items        []POItemRequest `json:"items" binding:"required,min=1,dive"`
}

type UpdatePORequest struct {
	ExpectedDate *time.Time      `json:"expectedDate"`
	Notes        *string         `json:"notes"`
	Items        []POItemRequest `json:"items" binding:"omitempty,min=1,dive"`
}

type POStatusRequest struct {
	Status  domain.POStatus `json:"status" binding:"required"`
	Remarks string          `json:"remarks"`
}

type GRNItemRequest struct {
	SKU         string `json:"sku" binding:"required"`
	ReceivedQty int    `json:"receivedQty" binding:"min=0"`
	AcceptedQty int    `json:"acceptedQty" binding:"min=0"`
	RejectedQty int    `json:"rejectedQty" binding:"min=0"`
}

type CreateGRNRequest struct {
	PurchaseOrderID uuid.UUID        `json:"purchaseOrderId" binding:"required"`
	ReceivedAt      *time.Time       `json:"receivedAt"`
	Notes           string           `json:"notes"`
	Items           []GRNItemRequest `json:"items" binding:"required,min=1,dive"`
}

// Idempotency carries the Idempotency-Key of a create request
type Idempotency struct {
	Key         string
	Scope       string
	RequestHash string
}

// Inventory

type PutAwayRequest struct {
	UPCIDs   []uuid.UUID `json:"upcIds" binding:"required,min=1,max=1000"`
	Location string      `json:"location" binding:"required,max=100"`
}

// Messaging

type TemplateRequest struct {
	Name         string               `json:"name" binding:"required,max=200"`
	LanguageCode string               `json:"languageCode"`
	Event        domain.TemplateEvent `json:"event" binding:"required"`
	BodyParams   []string             `json:"bodyParams"`
	Active       *bool                `json:"active"`
}

type SendTemplateRequest struct {
	TemplateID uuid.UUID   `json:"templateId" binding:"required"`
	OrderIDs   []uuid.UUID `json:"orderIds" binding:"required,min=1,max=500"`
}

type SendResult struct {
	OrderID   uuid.UUID `json:"orderId"`
	OK        bool      `json:"ok"`
	MessageID string    `json:"messageId,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Storefront

type SessionItemRequest struct {
	VariantID int64           `json:"variantId" binding:"required,gt=0"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
}

type CreateSessionRequest struct {
	Items []SessionItemRequest `json:"items" binding:"required,min=1,max=100,dive"`
}

type IdentifyRequest struct {
	Phone string `json:"phone" binding:"required"`
	Name  string `json:"name"`
	Email string `json:"email" binding:"omitempty,email"`
}

type AddressRequest struct {
	Name        string `json:"name" binding:"required"`
	Phone       string `json:"phone"`
	Address1    string `json:"address1" binding:"required"`
	Address2    string `json:"address2"`
	City        string `json:"city" binding:"required"`
	Province    string `json:"province"`
	Zip         string `json:"zip" binding:"required"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	IsDefault   bool   `json:"isDefault"`
}

type PlaceOrderRequest struct {
	AddressID     string `json:"addressId" binding:"required"`
	PaymentMethod string `json:"paymentMethod" binding:"required,oneof=cod prepaid"`
}

type ReturnLookupRequest struct {
	OrderName string `json:"orderName" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
}

type ReturnItemRequest struct {
	LineItemID int64 `json:"lineItemId" binding:"required"`
	Quantity   int   `json:"quantity" binding:"required,min=1"`
}

type CreateReturnRequest struct {
	OrderName string              `json:"orderName" binding:"required"`
	Phone     string              `json:"phone" binding:"required"`
	Reason    string              `json:"reason" binding:"required,max=500"`
	Items     []ReturnItemRequest `json:"items" binding:"required,min=1,dive"`
}
