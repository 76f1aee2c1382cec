package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type checkoutSessionRepository struct{ db *DB }

func (r *checkoutSessionRepository) Create(ctx context.Context, s *domain.CheckoutSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	r.db.d.Sessions[s.ID.String()] = *clone(*s)
	return nil
}

func (r *checkoutSessionRepository) GetByID(ctx context.Context, shop string, id uuid.UUID) (*domain.CheckoutSession, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	s, ok := r.db.d.Sessions[id.String()]
	if !ok || s.Shop != shop {
		return nil, &errors.ErrNotFound{Resource: "checkout_session", ID: id.String()}
	}
	return clone(s), nil
}

func (r *checkoutSessionRepository) Update(ctx context.Context, s *domain.CheckoutSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.d.Sessions[s.ID.String()]
	if !ok || existing.Shop != s.Shop {
		return &errors.ErrNotFound{Resource: "checkout_session", ID: s.ID.String()}
	}
	s.UpdatedAt = time.Now()
	r.db.d.Sessions[s.ID.String()] = *clone(*s)
	return nil
}

type checkoutCustomerRepository struct{ db *DB }

func (r *checkoutCustomerRepository) GetByPhone(ctx context.Context, shop, phone string) (*domain.CheckoutCustomer, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	c, ok := r.db.d.Customers[key(shop, phone)]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "checkout_customer", ID: phone}
	}
	return clone(c), nil
}

func (r *checkoutCustomerRepository) Upsert(ctx context.Context, c *domain.CheckoutCustomer) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	k := key(c.Shop, c.Phone)
	if existing, ok := r.db.d.Customers[k]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	} else {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
	}
	c.UpdatedAt = now
	r.db.d.Customers[k] = *clone(*c)
	return nil
}

type returnRequestRepository struct{ db *DB }

func (r *returnRequestRepository) Create(ctx context.Context, req *domain.ReturnRequest) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	r.db.d.ReturnRequests[req.ID.String()] = *clone(*req)
	return nil
}

func (r *returnRequestRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.ReturnRequest, error) {
	r.db.mu.RLock()
	var out []*domain.ReturnRequest
	for _, req := range r.db.d.ReturnRequests {
		if req.OrderID == orderID {
			out = append(out, clone(req))
		}
	}
	r.db.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type whatsAppTemplateRepository struct{ db *DB }

func (r *whatsAppTemplateRepository) nameTaken(t *domain.WhatsAppTemplate) bool {
	for _, existing := range r.db.d.Templates {
		if existing.Shop == t.Shop && existing.Name == t.Name && existing.ID != t.ID {
			return true
		}
	}
	return false
}

func (r *whatsAppTemplateRepository) Create(ctx context.Context, t *domain.WhatsAppTemplate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.nameTaken(t) {
		return &errors.ErrConflict{Message: "template already exists: " + t.Name}
	}
	now := time.Now()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	r.db.d.Templates[t.ID.String()] = *clone(*t)
	return nil
}

func (r *whatsAppTemplateRepository) Update(ctx context.Context, t *domain.WhatsAppTemplate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.d.Templates[t.ID.String()]
	if !ok || existing.Shop != t.Shop {
		return &errors.ErrNotFound{Resource: "whatsapp_template", ID: t.ID.String()}
	}
	if r.nameTaken(t) {
		return &errors.ErrConflict{Message: "template already exists: " + t.Name}
	}
	t.UpdatedAt = time.Now()
	r.db.d.Templates[t.ID.String()] = *clone(*t)
	return nil
}

func (r *whatsAppTemplateRepository) GetByID(ctx context.Context, shop string, id uuid.UUID) (*domain.WhatsAppTemplate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	t, ok := r.db.d.Templates[id.String()]
	if !ok || t.Shop != shop {
		return nil, &errors.ErrNotFound{Resource: "whatsapp_template", ID: id.String()}
	}
	return clone(t), nil
}

func (r *whatsAppTemplateRepository) GetByName(ctx context.Context, shop, name string) (*domain.WhatsAppTemplate, error) {
	all, _ := r.List(ctx, shop)
	for _, t := range all {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "whatsapp_template", ID: name}
}

func (r *whatsAppTemplateRepository) List(ctx context.Context, shop string) ([]*domain.WhatsAppTemplate, error) {
	r.db.mu.RLock()
	var out []*domain.WhatsAppTemplate
	for _, t := range r.db.d.Templates {
		if t.Shop == shop {
			out = append(out, clone(t))
		}
	}
	r.db.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *whatsAppTemplateRepository) ListActiveByEvent(ctx context.Context, shop string, event domain.TemplateEvent) ([]*domain.WhatsAppTemplate, error) {
	all, _ := r.List(ctx, shop)
	var out []*domain.WhatsAppTemplate
	for _, t := range all {
		if t.Active && t.Event == event {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *whatsAppTemplateRepository) Delete(ctx context.Context, shop string, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.d.Templates[id.String()]
	if !ok || t.Shop != shop {
		return &errors.ErrNotFound{Resource: "whatsapp_template", ID: id.String()}
	}
	delete(r.db.d.Templates, id.String())
	return nil
}
