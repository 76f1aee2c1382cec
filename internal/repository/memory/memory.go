// Package memory is an in-process implementation of the repositories used by
// the dev storage driver and by service tests.
package memory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
)

// data is the whole database. Composite keys are joined with "|".
type data struct {
	Businesses      map[string]domain.Business
	Members         map[string]domain.BusinessMember
	Stores          map[string]domain.Store
	StoreMembers    map[string]domain.StoreMember
	ServiceKeys     map[string]domain.ServiceKey
	Orders          map[string]domain.Order
	OrderLogs       map[string][]domain.OrderStatusLog
	Webhooks        map[string]string
	Products        map[string]domain.Product
	Suppliers       map[string]domain.Supplier
	Warehouses      map[string]domain.Warehouse
	PurchaseOrders  map[string]domain.PurchaseOrder
	GRNs            map[string]domain.GRN
	UPCs            map[string]domain.UPC
	Counters        map[string]int64
	Sessions        map[string]domain.CheckoutSession
	Customers       map[string]domain.CheckoutCustomer
	ReturnRequests  map[string]domain.ReturnRequest
	Templates       map[string]domain.WhatsAppTemplate
	IdempotencyKeys map[string]domain.IdempotencyKey
}

func newData() *data {
	return &data{
		Businesses:      map[string]domain.Business{},
		Members:         map[string]domain.BusinessMember{},
		Stores:          map[string]domain.Store{},
		StoreMembers:    map[string]domain.StoreMember{},
		ServiceKeys:     map[string]domain.ServiceKey{},
		Orders:          map[string]domain.Order{},
		OrderLogs:       map[string][]domain.OrderStatusLog{},
		Webhooks:        map[string]string{},
		Products:        map[string]domain.Product{},
		Suppliers:       map[string]domain.Supplier{},
		Warehouses:      map[string]domain.Warehouse{},
		PurchaseOrders:  map[string]domain.PurchaseOrder{},
		GRNs:            map[string]domain.GRN{},
		UPCs:            map[string]domain.UPC{},
		Counters:        map[string]int64{},
		Sessions:        map[string]domain.CheckoutSession{},
		Customers:       map[string]domain.CheckoutCustomer{},
		ReturnRequests:  map[string]domain.ReturnRequest{},
		Templates:       map[string]domain.WhatsAppTemplate{},
		IdempotencyKeys: map[string]domain.IdempotencyKey{},
	}
}

// DB holds the in-memory state shared by all repositories
type DB struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	d      *data
	logger *zap.Logger
}

// NewRepositories creates repositories over a fresh in-memory database
func NewRepositories(logger *zap.Logger) *repository.Repositories {
	db := &DB{d: newData(), logger: logger}
	txRepos := db.repositories()
	txRepos.Tx = nestedTx{repos: txRepos}
	repos := db.repositories()
	repos.Tx = &txRunner{db: db, repos: txRepos}
	return repos
}

func (db *DB) repositories() *repository.Repositories {
	return &repository.Repositories{
		Business:         &businessRepository{db: db},
		Store:            &storeRepository{db: db},
		ServiceKey:       &serviceKeyRepository{db: db},
		Order:            &orderRepository{db: db},
		OrderStatusLog:   &orderStatusLogRepository{db: db},
		ProcessedWebhook: &processedWebhookRepository{db: db},
		Product:          &productRepository{db: db},
		Supplier:         &supplierRepository{db: db},
		Warehouse:        &warehouseRepository{db: db},
		PurchaseOrder:    &purchaseOrderRepository{db: db},
		GRN:              &grnRepository{db: db},
		UPC:              &upcRepository{db: db},
		Counter:          &counterRepository{db: db},
		CheckoutSession:  &checkoutSessionRepository{db: db},
		CheckoutCustomer: &checkoutCustomerRepository{db: db},
		ReturnRequest:    &returnRequestRepository{db: db},
		WhatsAppTemplate: &whatsAppTemplateRepository{db: db},
		IdempotencyKey:   &idempotencyKeyRepository{db: db},
	}
}

// txRunner serialises transactions and restores a snapshot when fn fails
type txRunner struct {
	db    *DB
	repos *repository.Repositories
}

func (t *txRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, repos *repository.Repositories) error) error {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	snapshot, err := t.db.snapshot()
	if err != nil {
		return err
	}
	if err := fn(ctx, t.repos); err != nil {
		t.db.mu.Lock()
		t.db.d = snapshot
		t.db.mu.Unlock()
		t.db.logger.Debug("Rolled back in-memory transaction", zap.Error(err))
		return err
	}
	return nil
}

type nestedTx struct {
	repos *repository.Repositories
}

func (n nestedTx) WithinTx(ctx context.Context, fn func(ctx context.Context, repos *repository.Repositories) error) error {
	return fn(ctx, n.repos)
}

func (db *DB) snapshot() (*data, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out data
	if err := cloneInto(db.d, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func cloneInto(src, dst interface{}) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// clone deep-copies v so callers never share slices or maps with the store
func clone[T any](v T) *T {
	var out T
	if err := cloneInto(v, &out); err != nil {
		panic("memory: clone failed: " + err.Error())
	}
	return &out
}

func key(parts ...string) string {
	return strings.Join(parts, "|")
}
