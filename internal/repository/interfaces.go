package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jafarshop/opsapi/internal/domain"
)

// BusinessRepository defines business and membership data access methods
type BusinessRepository interface {
	Create(ctx context.Context, business *domain.Business) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error)
	UpsertMember(ctx context.Context, member *domain.BusinessMember) error
	GetMember(ctx context.Context, businessID uuid.UUID, uid string) (*domain.BusinessMember, error)
	ListMembers(ctx context.Context, businessID uuid.UUID) ([]*domain.BusinessMember, error)
	RemoveMember(ctx context.Context, businessID uuid.UUID, uid string) error
}

// StoreRepository defines store data access methods
type StoreRepository interface {
	Create(ctx context.Context, store *domain.Store) error
	GetByShop(ctx context.Context, shop string) (*domain.Store, error)
	Update(ctx context.Context, store *domain.Store) error
	List(ctx context.Context) ([]*domain.Store, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*domain.Store, error)
	UpsertMember(ctx context.Context, member *domain.StoreMember) error
	GetMember(ctx context.Context, shop, uid string) (*domain.StoreMember, error)
}

// ServiceKeyRepository defines service key data access methods
type ServiceKeyRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.ServiceKey, error)
	Create(ctx context.Context, key *domain.ServiceKey) error
}

// OrderFilter narrows order listings
type OrderFilter struct {
	Status domain.CustomStatus
	Limit  int
	Offset int
}

// OrderRepository defines order data access methods
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	Update(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, shop string, id uuid.UUID) (*domain.Order, error)
	GetByShopifyID(ctx context.Context, shop string, shopifyOrderID int64) (*domain.Order, error)
	GetByName(ctx context.Context, shop, name string) (*domain.Order, error)
	List(ctx context.Context, shop string, filter OrderFilter) ([]*domain.Order, error)
	ListWithAWBByStatuses(ctx context.Context, shop string, statuses []domain.CustomStatus, limit int) ([]*domain.Order, error)
	Delete(ctx context.Context, shop string, id uuid.UUID) error
}

// OrderStatusLogRepository defines order status log data access methods
type OrderStatusLogRepository interface {
	Create(ctx context.Context, log *domain.OrderStatusLog) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderStatusLog, error)
	DeleteByOrderID(ctx context.Context, orderID uuid.UUID) error
}

// ProcessedWebhookRepository records Shopify webhook deliveries already handled
type ProcessedWebhookRepository interface {
	Exists(ctx context.Context, webhookID string) (bool, error)
	Create(ctx context.Context, webhookID, shop, topic string) error
}

// ProductRepository defines business product data access methods
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Product, error)
	GetBySKU(ctx context.Context, businessID uuid.UUID, sku string) (*domain.Product, error)
	GetByMappedVariant(ctx context.Context, businessID uuid.UUID, variantKey string) (*domain.Product, error)
	List(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*domain.Product, error)
	Delete(ctx context.Context, businessID, id uuid.UUID) error
	UpsertBatch(ctx context.Context, products []*domain.Product) error
}

// SupplierRepository defines supplier data access methods
type SupplierRepository interface {
	Create(ctx context.Context, supplier *domain.Supplier) error
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Supplier, error)
	List(ctx context.Context, businessID uuid.UUID) ([]*domain.Supplier, error)
}

// WarehouseRepository defines warehouse data access methods
type WarehouseRepository interface {
	Create(ctx context.Context, warehouse *domain.Warehouse) error
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Warehouse, error)
	GetByCode(ctx context.Context, businessID uuid.UUID, code string) (*domain.Warehouse, error)
	List(ctx context.Context, businessID uuid.UUID) ([]*domain.Warehouse, error)
}

// PurchaseOrderRepository defines purchase order data access methods
type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *domain.PurchaseOrder) error
	Update(ctx context.Context, po *domain.PurchaseOrder) error
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.PurchaseOrder, error)
	List(ctx context.Context, businessID uuid.UUID, status domain.POStatus) ([]*domain.PurchaseOrder, error)
	HasOpenForSKU(ctx context.Context, businessID uuid.UUID, sku string) (bool, error)
}

// GRNRepository defines goods receipt note data access methods
type GRNRepository interface {
	Create(ctx context.Context, grn *domain.GRN) error
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.GRN, error)
	ListByPurchaseOrder(ctx context.Context, businessID, purchaseOrderID uuid.UUID) ([]*domain.GRN, error)
}

// UPCFilter narrows inventory unit listings
type UPCFilter struct {
	SKU         string
	PutAway     domain.PutAwayState
	WarehouseID *uuid.UUID
	OrderID     *uuid.UUID
	Limit       int
}

// UPCRepository defines inventory unit data access methods
type UPCRepository interface {
	CreateBatch(ctx context.Context, upcs []*domain.UPC) error
	UpdateBatch(ctx context.Context, upcs []*domain.UPC) error
	GetByIDs(ctx context.Context, businessID uuid.UUID, ids []uuid.UUID) ([]*domain.UPC, error)
	List(ctx context.Context, businessID uuid.UUID, filter UPCFilter) ([]*domain.UPC, error)
	Summary(ctx context.Context, businessID uuid.UUID) ([]domain.InventorySummary, error)
}

// CounterRepository hands out per-business document sequence numbers
type CounterRepository interface {
	Next(ctx context.Context, businessID uuid.UUID, name string) (int64, error)
}

// CheckoutSessionRepository defines checkout session data access methods
type CheckoutSessionRepository interface {
	Create(ctx context.Context, session *domain.CheckoutSession) error
	GetByID(ctx context.Context, shop string, id uuid.UUID) (*domain.CheckoutSession, error)
	Update(ctx context.Context, session *domain.CheckoutSession) error
}

// CheckoutCustomerRepository defines checkout customer data access methods
type CheckoutCustomerRepository interface {
	GetByPhone(ctx context.Context, shop, phone string) (*domain.CheckoutCustomer, error)
	Upsert(ctx context.Context, customer *domain.CheckoutCustomer) error
}

// ReturnRequestRepository defines return request data access methods
type ReturnRequestRepository interface {
	Create(ctx context.Context, req *domain.ReturnRequest) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.ReturnRequest, error)
}

// WhatsAppTemplateRepository defines messaging template data access methods
type WhatsAppTemplateRepository interface {
	Create(ctx context.Context, tpl *domain.WhatsAppTemplate) error
	Update(ctx context.Context, tpl *domain.WhatsAppTemplate) error
	GetByID(ctx context.Context, shop string, id uuid.UUID) (*domain.WhatsAppTemplate, error)
	GetByName(ctx context.Context, shop, name string) (*domain.WhatsAppTemplate, error)
	List(ctx context.Context, shop string) ([]*domain.WhatsAppTemplate, error)
	ListActiveByEvent(ctx context.Context, shop string, event domain.TemplateEvent) ([]*domain.WhatsAppTemplate, error)
	Delete(ctx context.Context, shop string, id uuid.UUID) error
}

// IdempotencyKeyRepository defines idempotency key data access methods
type IdempotencyKeyRepository interface {
	GetByKey(ctx context.Context, scope, key string) (*domain.IdempotencyKey, error)
	Create(ctx context.Context, key *domain.IdempotencyKey) error
}

// TxRunner runs fn inside a single transaction. The Repositories passed to fn are bound to it;
// returning an error rolls everything back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error
}

// Repositories aggregates all repositories
type Repositories struct {
	Business         BusinessRepository
	Store            StoreRepository
	ServiceKey       ServiceKeyRepository
	Order            OrderRepository
	OrderStatusLog   OrderStatusLogRepository
	ProcessedWebhook ProcessedWebhookRepository
	Product          ProductRepository
	Supplier         SupplierRepository
	Warehouse        WarehouseRepository
	PurchaseOrder    PurchaseOrderRepository
	GRN              GRNRepository
	UPC              UPCRepository
	Counter          CounterRepository
	CheckoutSession  CheckoutSessionRepository
	CheckoutCustomer CheckoutCustomerRepository
	ReturnRequest    ReturnRequestRepository
	WhatsAppTemplate WhatsAppTemplateRepository
	IdempotencyKey   IdempotencyKeyRepository
	Tx               TxRunner
}
