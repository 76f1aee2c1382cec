package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type productRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db dbtx, logger *zap.Logger) *productRepository {
	return &productRepository{
		db:     db,
		logger: logger,
	}
}

const productColumns = `id, business_id, sku, name, category, price, weight_grams, variant_mappings, mapped_variants, created_at, updated_at`

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `INSERT INTO products (` + productColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	prepareProduct(product, time.Now())
	args, err := productArgs(product)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return &errors.ErrConflict{Message: "SKU already exists: " + product.SKU}
		}
		r.logger.Error("Failed to create product", zap.Error(err))
		return err
	}
	return nil
}

func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products SET
			sku = $3, name = $4, category = $5, price = $6, weight_grams = $7,
			variant_mappings = $8, mapped_variants = $9, created_at = $10, updated_at = $11
		WHERE id = $1 AND business_id = $2
	`

	product.UpdatedAt = time.Now()
	args, err := productArgs(product)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return &errors.ErrConflict{Message: "SKU already exists: " + product.SKU}
		}
		r.logger.Error("Failed to update product", zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrNotFound{Resource: "product", ID: product.ID.String()}
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Product, error) {
	return r.getOne(ctx, id.String(), `business_id = $1 AND id = $2`, businessID, id)
}

func (r *productRepository) GetBySKU(ctx context.Context, businessID uuid.UUID, sku string) (*domain.Product, error) {
	return r.getOne(ctx, sku, `business_id = $1 AND sku = $2`, businessID, sku)
}

func (r *productRepository) GetByMappedVariant(ctx context.Context, businessID uuid.UUID, variantKey string) (*domain.Product, error) {
	return r.getOne(ctx, variantKey, `business_id = $1 AND $2 = ANY(mapped_variants)`, businessID, variantKey)
}

func (r *productRepository) getOne(ctx context.Context, ref, where string, args ...interface{}) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE ` + where + ` LIMIT 1`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "product", ID: ref}
	}
	if err != nil {
		r.logger.Error("Failed to get product", zap.String("ref", ref), zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (r *productRepository) List(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*domain.Product, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE business_id = $1 ORDER BY sku LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, businessID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *productRepository) Delete(ctx context.Context, businessID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE business_id = $1 AND id = $2`, businessID, id)
	if err != nil {
		r.logger.Error("Failed to delete product", zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	return nil
}

// UpsertBatch writes products keyed by (business_id, sku) using one multi-row
// statement per chunk. Variant mappings of existing rows are preserved.
func (r *productRepository) UpsertBatch(ctx context.Context, products []*domain.Product) error {
	now := time.Now()
	for _, chunk := range repository.Chunk(products, repository.BatchSize) {
		query := `INSERT INTO products (` + productColumns + `) VALUES `

		const cols = 11
		args := make([]interface{}, 0, len(chunk)*cols)
		placeholders := make([]string, 0, len(chunk))
		for i, p := range chunk {
			prepareProduct(p, now)
			p.UpdatedAt = now
			rowArgs, err := productArgs(p)
			if err != nil {
				return err
			}
			base := i * cols
			ph := make([]string, cols)
			for j := range ph {
				ph[j] = fmt.Sprintf("$%d", base+j+1)
			}
			placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")
			args = append(args, rowArgs...)
		}
		query += strings.Join(placeholders, ", ")
		query += `
			ON CONFLICT (business_id, sku) DO UPDATE SET
				name = EXCLUDED.name,
				category = EXCLUDED.category,
				price = EXCLUDED.price,
				weight_grams = EXCLUDED.weight_grams,
				updated_at = EXCLUDED.updated_at`

		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			r.logger.Error("Failed to upsert product batch", zap.Int("count", len(chunk)), zap.Error(err))
			return err
		}
	}
	return nil
}

func prepareProduct(p *domain.Product, now time.Time) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
}

func productArgs(p *domain.Product) ([]interface{}, error) {
	mappings := p.VariantMappings
	if mappings == nil {
		mappings = []domain.VariantMapping{}
	}
	mappingsJSON, err := json.Marshal(mappings)
	if err != nil {
		return nil, err
	}
	keys := p.MappedVariants
	if keys == nil {
		keys = []string{}
	}
	return []interface{}{
		p.ID,
		p.BusinessID,
		p.SKU,
		p.Name,
		nullString(p.Category),
		p.Price,
		p.WeightGrams,
		mappingsJSON,
		pq.Array(keys),
		p.CreatedAt,
		p.UpdatedAt,
	}, nil
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var category sql.NullString
	var mappingsJSON []byte
	var keys pq.StringArray

	if err := row.Scan(
		&p.ID,
		&p.BusinessID,
		&p.SKU,
		&p.Name,
		&category,
		&p.Price,
		&p.WeightGrams,
		&mappingsJSON,
		&keys,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Category = category.String
	p.MappedVariants = []string(keys)
	if len(mappingsJSON) > 0 {
		if err := json.Unmarshal(mappingsJSON, &p.VariantMappings); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
