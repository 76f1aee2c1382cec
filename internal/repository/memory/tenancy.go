package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type businessRepository struct{ db *DB }

func (r *businessRepository) Create(ctx context.Context, b *domain.Business) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	r.db.d.Businesses[b.ID.String()] = *clone(*b)
	return nil
}

func (r *businessRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	b, ok := r.db.d.Businesses[id.String()]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "business", ID: id.String()}
	}
	return clone(b), nil
}

func (r *businessRepository) UpsertMember(ctx context.Context, m *domain.BusinessMember) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := key(m.BusinessID.String(), m.UID)
	if existing, ok := r.db.d.Members[k]; ok {
		m.CreatedAt = existing.CreatedAt
	} else if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.db.d.Members[k] = *clone(*m)
	return nil
}

func (r *businessRepository) GetMember(ctx context.Context, businessID uuid.UUID, uid string) (*domain.BusinessMember, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	m, ok := r.db.d.Members[key(businessID.String(), uid)]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "business_member", ID: uid}
	}
	return clone(m), nil
}

func (r *businessRepository) ListMembers(ctx context.Context, businessID uuid.UUID) ([]*domain.BusinessMember, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*domain.BusinessMember
	for _, m := range r.db.d.Members {
		if m.BusinessID == businessID {
			out = append(out, clone(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *businessRepository) RemoveMember(ctx context.Context, businessID uuid.UUID, uid string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := key(businessID.String(), uid)
	if _, ok := r.db.d.Members[k]; !ok {
		return &errors.ErrNotFound{Resource: "business_member", ID: uid}
	}
	delete(r.db.d.Members, k)
	return nil
}

type storeRepository struct{ db *DB }

func (r *storeRepository) Create(ctx context.Context, s *domain.Store) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.d.Stores[s.Shop]; ok {
		return &errors.ErrConflict{Message: "store already registered: " + s.Shop}
	}
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	r.db.d.Stores[s.Shop] = *clone(*s)
	return nil
}

func (r *storeRepository) GetByShop(ctx context.Context, shop string) (*domain.Store, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	s, ok := r.db.d.Stores[shop]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "store", ID: shop}
	}
	return clone(s), nil
}

func (r *storeRepository) Update(ctx context.Context, s *domain.Store) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.d.Stores[s.Shop]; !ok {
		return &errors.ErrNotFound{Resource: "store", ID: s.Shop}
	}
	s.UpdatedAt = time.Now()
	r.db.d.Stores[s.Shop] = *clone(*s)
	return nil
}

func (r *storeRepository) List(ctx context.Context) ([]*domain.Store, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]*domain.Store, 0, len(r.db.d.Stores))
	for _, s := range r.db.d.Stores {
		out = append(out, clone(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Shop < out[j].Shop })
	return out, nil
}

func (r *storeRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*domain.Store, error) {
	all, _ := r.List(ctx)
	var out []*domain.Store
	for _, s := range all {
		if s.BusinessID != nil && *s.BusinessID == businessID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *storeRepository) UpsertMember(ctx context.Context, m *domain.StoreMember) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.db.d.StoreMembers[key(m.Shop, m.UID)] = *clone(*m)
	return nil
}

func (r *storeRepository) GetMember(ctx context.Context, shop, uid string) (*domain.StoreMember, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	m, ok := r.db.d.StoreMembers[key(shop, uid)]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "store_member", ID: uid}
	}
	return clone(m), nil
}

type serviceKeyRepository struct{ db *DB }

func (r *serviceKeyRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.ServiceKey, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	k, ok := r.db.d.ServiceKeys[domain.APIKeyLookupHash(apiKey)]
	if !ok || !k.IsActive {
		return nil, &errors.ErrUnauthorized{Message: "invalid API key"}
	}
	if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(apiKey)) != nil {
		return nil, &errors.ErrUnauthorized{Message: "invalid API key"}
	}
	return clone(k), nil
}

func (r *serviceKeyRepository) Create(ctx context.Context, k *domain.ServiceKey) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now()
	}
	r.db.d.ServiceKeys[k.KeyLookup] = *clone(*k)
	return nil
}

type idempotencyKeyRepository struct{ db *DB }

func (r *idempotencyKeyRepository) GetByKey(ctx context.Context, scope, k string) (*domain.IdempotencyKey, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	v, ok := r.db.d.IdempotencyKeys[key(scope, k)]
	if !ok {
		return nil, nil
	}
	return clone(v), nil
}

func (r *idempotencyKeyRepository) Create(ctx context.Context, k *domain.IdempotencyKey) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	id := key(k.Scope, k.Key)
	if _, ok := r.db.d.IdempotencyKeys[id]; ok {
		return nil
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now()
	}
	r.db.d.IdempotencyKeys[id] = *k
	return nil
}

type processedWebhookRepository struct{ db *DB }

func (r *processedWebhookRepository) Exists(ctx context.Context, webhookID string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	_, ok := r.db.d.Webhooks[webhookID]
	return ok, nil
}

func (r *processedWebhookRepository) Create(ctx context.Context, webhookID, shop, topic string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.d.Webhooks[webhookID]; !ok {
		r.db.d.Webhooks[webhookID] = key(shop, topic)
	}
	return nil
}
