package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type purchaseOrderRepository struct{ db *DB }

func (r *purchaseOrderRepository) Create(ctx context.Context, po *domain.PurchaseOrder) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.d.PurchaseOrders {
		if existing.BusinessID == po.BusinessID && existing.Number == po.Number {
			return &errors.ErrConflict{Message: "purchase order number already used: " + po.Number}
		}
	}
	now := time.Now()
	if po.ID == uuid.Nil {
		po.ID = uuid.New()
	}
	if po.CreatedAt.IsZero() {
		po.CreatedAt = now
	}
	po.UpdatedAt = now
	r.db.d.PurchaseOrders[po.ID.String()] = *clone(*po)
	return nil
}

func (r *purchaseOrderRepository) Update(ctx context.Context, po *domain.PurchaseOrder) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.d.PurchaseOrders[po.ID.String()]
	if !ok || existing.BusinessID != po.BusinessID {
		return &errors.ErrNotFound{Resource: "purchase_order", ID: po.ID.String()}
	}
	po.UpdatedAt = time.Now()
	r.db.d.PurchaseOrders[po.ID.String()] = *clone(*po)
	return nil
}

func (r *purchaseOrderRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.PurchaseOrder, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	po, ok := r.db.d.PurchaseOrders[id.String()]
	if !ok || po.BusinessID != businessID {
		return nil, &errors.ErrNotFound{Resource: "purchase_order", ID: id.String()}
	}
	return clone(po), nil
}

func (r *purchaseOrderRepository) List(ctx context.Context, businessID uuid.UUID, status domain.POStatus) ([]*domain.PurchaseOrder, error) {
	r.db.mu.RLock()
	var out []*domain.PurchaseOrder
	for _, po := range r.db.d.PurchaseOrders {
		if po.BusinessID == businessID && (status == "" || po.Status == status) {
			out = append(out, clone(po))
		}
	}
	r.db.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *purchaseOrderRepository) HasOpenForSKU(ctx context.Context, businessID uuid.UUID, sku string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, po := range r.db.d.PurchaseOrders {
		if po.BusinessID != businessID || po.Status.IsTerminal() {
			continue
		}
		if _, ok := po.Item(sku); ok {
			return true, nil
		}
	}
	return false, nil
}

type grnRepository struct{ db *DB }

func (r *grnRepository) Create(ctx context.Context, g *domain.GRN) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	if g.ReceivedAt.IsZero() {
		g.ReceivedAt = now
	}
	r.db.d.GRNs[g.ID.String()] = *clone(*g)
	return nil
}

func (r *grnRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.GRN, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	g, ok := r.db.d.GRNs[id.String()]
	if !ok || g.BusinessID != businessID {
		return nil, &errors.ErrNotFound{Resource: "grn", ID: id.String()}
	}
	return clone(g), nil
}

func (r *grnRepository) ListByPurchaseOrder(ctx context.Context, businessID, purchaseOrderID uuid.UUID) ([]*domain.GRN, error) {
	r.db.mu.RLock()
	var out []*domain.GRN
	for _, g := range r.db.d.GRNs {
		if g.BusinessID == businessID && g.PurchaseOrderID == purchaseOrderID {
			out = append(out, clone(g))
		}
	}
	r.db.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}

type upcRepository struct{ db *DB }

func (r *upcRepository) CreateBatch(ctx context.Context, upcs []*domain.UPC) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for _, chunk := range repository.Chunk(upcs, repository.BatchSize) {
		for _, u := range chunk {
			if u.ID == uuid.Nil {
				u.ID = uuid.New()
			}
			if u.CreatedAt.IsZero() {
				u.CreatedAt = now
			}
			u.UpdatedAt = now
			r.db.d.UPCs[u.ID.String()] = *clone(*u)
		}
	}
	return nil
}

func (r *upcRepository) UpdateBatch(ctx context.Context, upcs []*domain.UPC) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for _, u := range upcs {
		existing, ok := r.db.d.UPCs[u.ID.String()]
		if !ok || existing.BusinessID != u.BusinessID {
			return &errors.ErrNotFound{Resource: "upc", ID: u.ID.String()}
		}
		u.UpdatedAt = now
		existing.PutAway = u.PutAway
		existing.Location = u.Location
		existing.Shop = u.Shop
		existing.OrderID = u.OrderID
		existing.UpdatedAt = now
		r.db.d.UPCs[u.ID.String()] = *clone(existing)
	}
	return nil
}

func (r *upcRepository) GetByIDs(ctx context.Context, businessID uuid.UUID, ids []uuid.UUID) ([]*domain.UPC, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*domain.UPC
	for _, id := range ids {
		if u, ok := r.db.d.UPCs[id.String()]; ok && u.BusinessID == businessID {
			out = append(out, clone(u))
		}
	}
	return out, nil
}

func (r *upcRepository) List(ctx context.Context, businessID uuid.UUID, filter repository.UPCFilter) ([]*domain.UPC, error) {
	r.db.mu.RLock()
	var out []*domain.UPC
	for _, u := range r.db.d.UPCs {
		switch {
		case u.BusinessID != businessID:
		case filter.SKU != "" && u.SKU != filter.SKU:
		case filter.PutAway != "" && u.PutAway != filter.PutAway:
		case filter.WarehouseID != nil && u.WarehouseID != *filter.WarehouseID:
		case filter.OrderID != nil && (u.OrderID == nil || *u.OrderID != *filter.OrderID):
		default:
			out = append(out, clone(u))
		}
	}
	r.db.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return page(out, 0, filter.Limit), nil
}

func (r *upcRepository) Summary(ctx context.Context, businessID uuid.UUID) ([]domain.InventorySummary, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	bySKU := map[string]map[domain.PutAwayState]int{}
	for _, u := range r.db.d.UPCs {
		if u.BusinessID != businessID {
			continue
		}
		if bySKU[u.SKU] == nil {
			bySKU[u.SKU] = map[domain.PutAwayState]int{}
		}
		bySKU[u.SKU][u.PutAway]++
	}
	out := make([]domain.InventorySummary, 0, len(bySKU))
	for sku, counts := range bySKU {
		out = append(out, domain.InventorySummary{SKU: sku, Counts: counts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}
