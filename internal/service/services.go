package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/config"
	"github.com/jafarshop/opsapi/internal/courier"
	"github.com/jafarshop/opsapi/internal/events"
	"github.com/jafarshop/opsapi/internal/lock"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/internal/shopify"
	"github.com/jafarshop/opsapi/internal/storage"
	"github.com/jafarshop/opsapi/internal/whatsapp"
)

// Deps are the collaborators shared by all services
type Deps struct {
	Config   *config.Config
	Repos    *repository.Repositories
	Shopify  shopify.Factory
	Payments shopify.Payments
	Couriers courier.Factory
	WhatsApp whatsapp.Sender
	Events   events.Publisher
	Storage  storage.Uploader
	Locker   lock.Locker
	Logger   *zap.Logger
	Now      func() time.Time
}

// Services groups the business services used by the HTTP layer and the background jobs
type Services struct {
	Tenancy    *tenancyService
	Stores     *storeService
	Webhooks   *webhookService
	Orders     *orderService
	Products   *productService
	Purchasing *purchasingService
	Inventory  *inventoryService
	Shipping   *shippingService
	Messaging  *messagingService
	Storefront *storefrontService
}

// New wires every service. Optional collaborators default to no-ops.
func New(d Deps) *Services {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	if d.Storage == nil {
		d.Storage = storage.Noop{}
	}
	if d.Locker == nil {
		d.Locker = lock.Noop{}
	}

	messaging := NewMessagingService(d)
	orders := NewOrderService(d, messaging)
	return &Services{
		Tenancy:    NewTenancyService(d),
		Stores:     NewStoreService(d),
		Webhooks:   NewWebhookService(d, messaging),
		Orders:     orders,
		Products:   NewProductService(d),
		Purchasing: NewPurchasingService(d),
		Inventory:  NewInventoryService(d),
		Shipping:   NewShippingService(d, orders),
		Messaging:  messaging,
		Storefront: NewStorefrontService(d, orders),
	}
}
