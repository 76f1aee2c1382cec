package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type orderRepository struct{ db *DB }

func (r *orderRepository) Create(ctx context.Context, o *domain.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.d.Orders {
		if existing.Shop == o.Shop && existing.ShopifyOrderID == o.ShopifyOrderID {
			return &errors.ErrConflict{Message: "order already exists"}
		}
	}
	now := time.Now()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	r.db.d.Orders[o.ID.String()] = *clone(*o)
	return nil
}

func (r *orderRepository) Update(ctx context.Context, o *domain.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.d.Orders[o.ID.String()]; !ok {
		return &errors.ErrNotFound{Resource: "order", ID: o.ID.String()}
	}
	o.UpdatedAt = time.Now()
	r.db.d.Orders[o.ID.String()] = *clone(*o)
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, shop string, id uuid.UUID) (*domain.Order, error) {
	return r.find(id.String(), func(o *domain.Order) bool { return o.Shop == shop && o.ID == id })
}

func (r *orderRepository) GetByShopifyID(ctx context.Context, shop string, shopifyOrderID int64) (*domain.Order, error) {
	return r.find("shopify:"+strconv.FormatInt(shopifyOrderID, 10), func(o *domain.Order) bool {
		return o.Shop == shop && o.ShopifyOrderID == shopifyOrderID
	})
}

func (r *orderRepository) GetByName(ctx context.Context, shop, name string) (*domain.Order, error) {
	name = "#" + strings.TrimPrefix(strings.TrimSpace(name), "#")
	return r.find(name, func(o *domain.Order) bool { return o.Shop == shop && o.Name == name })
}

func (r *orderRepository) find(ref string, match func(*domain.Order) bool) (*domain.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, o := range r.db.d.Orders {
		if match(&o) {
			return clone(o), nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "order", ID: ref}
}

func (r *orderRepository) List(ctx context.Context, shop string, filter repository.OrderFilter) ([]*domain.Order, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	all := r.filter(func(o *domain.Order) bool {
		return o.Shop == shop && (filter.Status == "" || o.CustomStatus == filter.Status)
	})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].ShopifyCreatedAt.Equal(all[j].ShopifyCreatedAt) {
			return all[i].ShopifyCreatedAt.After(all[j].ShopifyCreatedAt)
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, filter.Offset, limit), nil
}

func (r *orderRepository) ListWithAWBByStatuses(ctx context.Context, shop string, statuses []domain.CustomStatus, limit int) ([]*domain.Order, error) {
	wanted := map[domain.CustomStatus]bool{}
	for _, s := range statuses {
		wanted[s] = true
	}
	all := r.filter(func(o *domain.Order) bool {
		return o.Shop == shop && o.AWB != "" && wanted[o.CustomStatus]
	})
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.Before(all[j].UpdatedAt) })
	return page(all, 0, limit), nil
}

func (r *orderRepository) filter(match func(*domain.Order) bool) []*domain.Order {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*domain.Order
	for _, o := range r.db.d.Orders {
		if match(&o) {
			out = append(out, clone(o))
		}
	}
	return out
}

func (r *orderRepository) Delete(ctx context.Context, shop string, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.d.Orders[id.String()]
	if !ok || o.Shop != shop {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	delete(r.db.d.Orders, id.String())
	delete(r.db.d.OrderLogs, id.String())
	return nil
}

type orderStatusLogRepository struct{ db *DB }

func (r *orderStatusLogRepository) Create(ctx context.Context, l *domain.OrderStatusLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	k := l.OrderID.String()
	r.db.d.OrderLogs[k] = append(r.db.d.OrderLogs[k], *l)
	return nil
}

func (r *orderStatusLogRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderStatusLog, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	logs := r.db.d.OrderLogs[orderID.String()]
	out := make([]*domain.OrderStatusLog, 0, len(logs))
	for _, l := range logs {
		l := l
		out = append(out, &l)
	}
	return out, nil
}

func (r *orderStatusLogRepository) DeleteByOrderID(ctx context.Context, orderID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.d.OrderLogs, orderID.String())
	return nil
}

func page[T any](all []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}
