package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/config"
	"github.com/jafarshop/opsapi/internal/courier"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/events"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/internal/repository/memory"
	"github.com/jafarshop/opsapi/internal/shopify"
	"github.com/jafarshop/opsapi/internal/whatsapp"
)

const (
	testShop   = "acme.myshopify.com"
	testSecret = "webhook-secret"
	ownerUID   = "owner-1"
)

type fakeAdmin struct {
	mu        sync.Mutex
	drafts    []shopify.DraftOrderInput
	completed []string
	cancelled []int64
	fulfilled []shopify.FulfillmentTrackingInput
	nextOrder int64
	cancelErr error
}

func (f *fakeAdmin) CreateDraftOrder(ctx context.Context, input shopify.DraftOrderInput) (*shopify.DraftOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, input)
	return &shopify.DraftOrder{ID: fmt.Sprintf("gid://shopify/DraftOrder/%d", len(f.drafts)), Name: fmt.Sprintf("#D%d", len(f.drafts))}, nil
}

func (f *fakeAdmin) CompleteDraftOrder(ctx context.Context, draftOrderID string, paymentPending bool) (*shopify.PlacedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, draftOrderID)
	f.nextOrder++
	id := 5000 + f.nextOrder
	return &shopify.PlacedOrder{ID: id, GID: shopify.OrderGID(id), Name: fmt.Sprintf("#%d", 1000+f.nextOrder)}, nil
}

func (f *fakeAdmin) CancelOrder(ctx context.Context, orderID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeAdmin) FulfillOrder(ctx context.Context, orderID int64, tracking shopify.FulfillmentTrackingInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fulfilled = append(f.fulfilled, tracking)
	return nil
}

type fakeShopify struct{ admin *fakeAdmin }

func (f fakeShopify) ForStore(*domain.Store) shopify.Admin { return f.admin }

type fakePayments struct {
	captured []int64
}

func (f *fakePayments) Capture(ctx context.Context, store *domain.Store, orderID int64, amount decimal.Decimal) error {
	f.captured = append(f.captured, orderID)
	return nil
}

type fakeCourier struct {
	mu        sync.Mutex
	booked    []courier.Shipment
	cancelled []string
	scans     map[string]*courier.Tracking
}

func (f *fakeCourier) Name() string { return domain.CourierDelhivery }

func (f *fakeCourier) CreateShipment(ctx context.Context, s courier.Shipment) (*courier.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.booked = append(f.booked, s)
	awb := fmt.Sprintf("AWB%03d", len(f.booked))
	return &courier.Booking{AWB: awb, Courier: f.Name(), TrackingURL: courier.TrackingURL(f.Name(), awb)}, nil
}

func (f *fakeCourier) Track(ctx context.Context, awb string) (*courier.Tracking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.scans[awb]; ok {
		return t, nil
	}
	return &courier.Tracking{AWB: awb, RawStatus: "Manifested"}, nil
}

func (f *fakeCourier) Cancel(ctx context.Context, awb string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, awb)
	return nil
}

type fakeCouriers struct{ client *fakeCourier }

func (f fakeCouriers) ForStore(store *domain.Store, name string) (courier.Client, error) {
	return f.client, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []whatsapp.TemplateMessage
}

func (f *fakeSender) SendTemplate(ctx context.Context, apiKey string, msg whatsapp.TemplateMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

func (f *fakeSender) templates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.TemplateName)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	svc        *Services
	repos      *repository.Repositories
	admin      *fakeAdmin
	payments   *fakePayments
	courier    *fakeCourier
	sender     *fakeSender
	published  *recordingPublisher
	clock      *clock
	store      *domain.Store
	businessID uuid.UUID
}

// newTestEnv wires every service over the in-memory repositories with one business
// owning one store that has WhatsApp and a courier configured.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	repos := memory.NewRepositories(logger)

	env := &testEnv{
		repos:     repos,
		admin:     &fakeAdmin{},
		payments:  &fakePayments{},
		courier:   &fakeCourier{scans: map[string]*courier.Tracking{}},
		sender:    &fakeSender{},
		published: &recordingPublisher{},
		clock:     &clock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
	}

	cfg := &config.Config{
		Shopify:            config.ShopifyConfig{APISecret: testSecret, APIVersion: "2025-01"},
		DefaultPhoneRegion: "IN",
		Checkout: config.CheckoutConfig{
			SessionTTL:   30 * time.Minute,
			CustomerTTL:  24 * time.Hour,
			ReturnWindow: 7 * 24 * time.Hour,
		},
		Tracking: config.TrackingConfig{SyncInterval: time.Minute},
	}
	env.svc = New(Deps{
		Config:   cfg,
		Repos:    repos,
		Shopify:  fakeShopify{admin: env.admin},
		Payments: env.payments,
		Couriers: fakeCouriers{client: env.courier},
		WhatsApp: env.sender,
		Events:   env.published,
		Logger:   logger,
		Now:      env.clock.Now,
	})

	business, err := env.svc.Tenancy.CreateBusiness(ctx, ownerUID, "owner@example.com", CreateBusinessRequest{Name: "Acme Apparel"})
	require.NoError(t, err)
	env.businessID = business.ID

	env.store = &domain.Store{
		Shop:        testShop,
		BusinessID:  &business.ID,
		Name:        "Acme",
		AccessToken: "shpat_test",
		Integrations: domain.StoreIntegrations{
			Interakt: &domain.InteraktCredentials{APIKey: "interakt-key"},
			Couriers: map[string]domain.CourierCredentials{
				domain.CourierDelhivery: {Token: "tok", PickupLocation: "Main WH", Enabled: true},
			},
			DefaultCourier: domain.CourierDelhivery,
		},
	}
	require.NoError(t, repos.Store.Create(ctx, env.store))
	return env
}

// seedOrder stores an order directly, bypassing the webhook
func (e *testEnv) seedOrder(t *testing.T, shopifyID int64, status domain.CustomStatus, items ...domain.OrderLineItem) *domain.Order {
	t.Helper()
	if len(items) == 0 {
		items = []domain.OrderLineItem{{ShopifyLineItemID: shopifyID*10 + 1, VariantID: 42, SKU: "TS-M", Title: "T-shirt", Quantity: 2, Price: decimal.NewFromInt(199)}}
	}
	o := &domain.Order{
		Shop:           testShop,
		ShopifyOrderID: shopifyID,
		Name:           fmt.Sprintf("#%d", shopifyID),
		Phone:          "9876543210",
		CustomerName:   "Asha Rao",
		CustomStatus:   status,
		TotalPrice:     decimal.NewFromInt(398),
		Currency:       "INR",
		LineItems:      items,
		ShippingAddress: &domain.Address{
			Name: "Asha Rao", Phone: "9876543210", Address1: "1 MG Road", City: "Pune", Province: "MH", Zip: "411001", Country: "India",
		},
	}
	require.NoError(t, e.repos.Order.Create(context.Background(), o))
	return o
}

// seedProduct creates a product mapped to the store variant
func (e *testEnv) seedProduct(t *testing.T, sku string, variantID int64) *domain.Product {
	t.Helper()
	p := &domain.Product{BusinessID: e.businessID, SKU: sku, Name: sku, Price: decimal.NewFromInt(100), WeightGrams: 250}
	if variantID > 0 {
		p.AddVariant(domain.VariantMapping{Shop: testShop, VariantID: variantID})
	}
	require.NoError(t, e.repos.Product.Create(context.Background(), p))
	return p
}

// seedUnits creates n units of sku in the given put-away state
func (e *testEnv) seedUnits(t *testing.T, sku string, n int, state domain.PutAwayState) []*domain.UPC {
	t.Helper()
	units := make([]*domain.UPC, 0, n)
	for i := 0; i < n; i++ {
		units = append(units, &domain.UPC{BusinessID: e.businessID, SKU: sku, WarehouseID: uuid.New(), PutAway: state})
	}
	require.NoError(t, e.repos.UPC.CreateBatch(context.Background(), units))
	return units
}

func (e *testEnv) countUnits(t *testing.T, sku string, state domain.PutAwayState) int {
	t.Helper()
	units, err := e.repos.UPC.List(context.Background(), e.businessID, repository.UPCFilter{SKU: sku, PutAway: state})
	require.NoError(t, err)
	return len(units)
}

func (e *testEnv) template(t *testing.T, name string, event domain.TemplateEvent, params ...string) *domain.WhatsAppTemplate {
	t.Helper()
	tpl, err := e.svc.Messaging.CreateTemplate(context.Background(), testShop, TemplateRequest{Name: name, Event: event, BodyParams: params})
	require.NoError(t, err)
	return tpl
}
