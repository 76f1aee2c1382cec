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

type productRepository struct{ db *DB }

func (r *productRepository) skuTaken(p *domain.Product) bool {
	for _, existing := range r.db.d.Products {
		if existing.BusinessID == p.BusinessID && existing.SKU == p.SKU && existing.ID != p.ID {
			return true
		}
	}
	return false
}

func (r *productRepository) Create(ctx context.Context, p *domain.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.skuTaken(p) {
		return &errors.ErrConflict{Message: "SKU already exists: " + p.SKU}
	}
	now := time.Now()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.db.d.Products[p.ID.String()] = *clone(*p)
	return nil
}

func (r *productRepository) Update(ctx context.Context, p *domain.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.d.Products[p.ID.String()]
	if !ok || existing.BusinessID != p.BusinessID {
		return &errors.ErrNotFound{Resource: "product", ID: p.ID.String()}
	}
	if r.skuTaken(p) {
		return &errors.ErrConflict{Message: "SKU already exists: " + p.SKU}
	}
	p.UpdatedAt = time.Now()
	r.db.d.Products[p.ID.String()] = *clone(*p)
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Product, error) {
	return r.find(id.String(), func(p *domain.Product) bool { return p.BusinessID == businessID && p.ID == id })
}

func (r *productRepository) GetBySKU(ctx context.Context, businessID uuid.UUID, sku string) (*domain.Product, error) {
	return r.find(sku, func(p *domain.Product) bool { return p.BusinessID == businessID && p.SKU == sku })
}

func (r *productRepository) GetByMappedVariant(ctx context.Context, businessID uuid.UUID, variantKey string) (*domain.Product, error) {
	return r.find(variantKey, func(p *domain.Product) bool {
		if p.BusinessID != businessID {
			return false
		}
		for _, k := range p.MappedVariants {
			if k == variantKey {
				return true
			}
		}
		return false
	})
}

func (r *productRepository) find(ref string, match func(*domain.Product) bool) (*domain.Product, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, p := range r.db.d.Products {
		if match(&p) {
			return clone(p), nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "product", ID: ref}
}

func (r *productRepository) List(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*domain.Product, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	r.db.mu.RLock()
	var out []*domain.Product
	for _, p := range r.db.d.Products {
		if p.BusinessID == businessID {
			out = append(out, clone(p))
		}
	}
	r.db.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return page(out, offset, limit), nil
}

func (r *productRepository) Delete(ctx context.Context, businessID, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.d.Products[id.String()]
	if !ok || p.BusinessID != businessID {
		return &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	delete(r.db.d.Products, id.String())
	return nil
}

// UpsertBatch keeps the variant mappings of products that already exist
func (r *productRepository) UpsertBatch(ctx context.Context, products []*domain.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for _, chunk := range repository.Chunk(products, repository.BatchSize) {
		for _, p := range chunk {
			var current *domain.Product
			for _, existing := range r.db.d.Products {
				if existing.BusinessID == p.BusinessID && existing.SKU == p.SKU {
					current = clone(existing)
					break
				}
			}
			if current == nil {
				if p.ID == uuid.Nil {
					p.ID = uuid.New()
				}
				if p.CreatedAt.IsZero() {
					p.CreatedAt = now
				}
				p.UpdatedAt = now
				r.db.d.Products[p.ID.String()] = *clone(*p)
				continue
			}
			current.Name = p.Name
			current.Category = p.Category
			current.Price = p.Price
			current.WeightGrams = p.WeightGrams
			current.UpdatedAt = now
			r.db.d.Products[current.ID.String()] = *current
		}
	}
	return nil
}

type supplierRepository struct{ db *DB }

func (r *supplierRepository) Create(ctx context.Context, s *domain.Supplier) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	r.db.d.Suppliers[s.ID.String()] = *s
	return nil
}

func (r *supplierRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Supplier, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	s, ok := r.db.d.Suppliers[id.String()]
	if !ok || s.BusinessID != businessID {
		return nil, &errors.ErrNotFound{Resource: "supplier", ID: id.String()}
	}
	return &s, nil
}

func (r *supplierRepository) List(ctx context.Context, businessID uuid.UUID) ([]*domain.Supplier, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*domain.Supplier
	for _, s := range r.db.d.Suppliers {
		if s.BusinessID == businessID {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type warehouseRepository struct{ db *DB }

func (r *warehouseRepository) Create(ctx context.Context, w *domain.Warehouse) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.d.Warehouses {
		if existing.BusinessID == w.BusinessID && existing.Code == w.Code {
			return &errors.ErrConflict{Message: "warehouse code already exists: " + w.Code}
		}
	}
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	r.db.d.Warehouses[w.ID.String()] = *w
	return nil
}

func (r *warehouseRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Warehouse, error) {
	return r.find(id.String(), func(w domain.Warehouse) bool { return w.BusinessID == businessID && w.ID == id })
}

func (r *warehouseRepository) GetByCode(ctx context.Context, businessID uuid.UUID, code string) (*domain.Warehouse, error) {
	return r.find(code, func(w domain.Warehouse) bool { return w.BusinessID == businessID && w.Code == code })
}

func (r *warehouseRepository) find(ref string, match func(domain.Warehouse) bool) (*domain.Warehouse, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, w := range r.db.d.Warehouses {
		if match(w) {
			return &w, nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "warehouse", ID: ref}
}

func (r *warehouseRepository) List(ctx context.Context, businessID uuid.UUID) ([]*domain.Warehouse, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*domain.Warehouse
	for _, w := range r.db.d.Warehouses {
		if w.BusinessID == businessID {
			w := w
			out = append(out, &w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

type counterRepository struct{ db *DB }

func (r *counterRepository) Next(ctx context.Context, businessID uuid.UUID, name string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := key(businessID.String(), name)
	r.db.d.Counters[k]++
	return r.db.d.Counters[k], nil
}
