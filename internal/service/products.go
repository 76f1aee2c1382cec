package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/documents"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/internal/shopify"
	"github.com/jafarshop/opsapi/internal/storage"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type productService struct {
	repos   *repository.Repositories
	storage storage.Uploader
	logger  *zap.Logger
	now     func() time.Time
}

// NewProductService creates the business catalog service
func NewProductService(d Deps) *productService {
	return &productService{repos: d.Repos, storage: d.Storage, logger: d.Logger, now: d.Now}
}

func (s *productService) Create(ctx context.Context, businessID uuid.UUID, req ProductRequest) (*domain.Product, error) {
	if req.Price.IsNegative() {
		return nil, &errors.ErrValidation{Message: "invalid product", Fields: map[string]string{"price": "must be >= 0"}}
	}
	product := &domain.Product{
		BusinessID:  businessID,
		SKU:         strings.TrimSpace(req.SKU),
		Name:        strings.TrimSpace(req.Name),
		Category:    strings.TrimSpace(req.Category),
		Price:       req.Price,
		WeightGrams: req.WeightGrams,
	}
	if err := s.repos.Product.Create(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info("Product created", zap.String("business_id", businessID.String()), zap.String("sku", product.SKU))
	return product, nil
}

func (s *productService) Update(ctx context.Context, businessID, id uuid.UUID, req ProductRequest) (*domain.Product, error) {
	if req.Price.IsNegative() {
		return nil, &errors.ErrValidation{Message: "invalid product", Fields: map[string]string{"price": "must be >= 0"}}
	}
	product, err := s.repos.Product.GetByID(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	sku := strings.TrimSpace(req.SKU)
	if sku != product.SKU {
		open, err := s.repos.PurchaseOrder.HasOpenForSKU(ctx, businessID, product.SKU)
		if err != nil {
			return nil, err
		}
		if open {
			return nil, &errors.ErrConflict{Message: "SKU " + product.SKU + " is on an open purchase order and cannot be renamed"}
		}
		units, err := s.repos.UPC.List(ctx, businessID, repository.UPCFilter{SKU: product.SKU, Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(units) > 0 {
			return nil, &errors.ErrConflict{Message: "SKU " + product.SKU + " has inventory units and cannot be renamed"}
		}
	}
	product.SKU = sku
	product.Name = strings.TrimSpace(req.Name)
	product.Category = strings.TrimSpace(req.Category)
	product.Price = req.Price
	product.WeightGrams = req.WeightGrams
	if err := s.repos.Product.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) Get(ctx context.Context, businessID, id uuid.UUID) (*domain.Product, error) {
	return s.repos.Product.GetByID(ctx, businessID, id)
}

func (s *productService) List(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*domain.Product, error) {
	return s.repos.Product.List(ctx, businessID, limit, offset)
}

// Delete is refused while an open purchase order references the SKU
func (s *productService) Delete(ctx context.Context, businessID, id uuid.UUID) error {
	product, err := s.repos.Product.GetByID(ctx, businessID, id)
	if err != nil {
		return err
	}
	open, err := s.repos.PurchaseOrder.HasOpenForSKU(ctx, businessID, product.SKU)
	if err != nil {
		return err
	}
	if open {
		return &errors.ErrConflict{Message: "SKU " + product.SKU + " is on an open purchase order"}
	}
	return s.repos.Product.Delete(ctx, businessID, id)
}

// MapVariant links a store variant to the product. A variant maps to one SKU;
// moving it from another product requires force.
func (s *productService) MapVariant(ctx context.Context, businessID, productID uuid.UUID, req MapVariantRequest) (*domain.Product, error) {
	shop := shopify.NormalizeShopDomain(req.Shop)
	store, err := s.repos.Store.GetByShop(ctx, shop)
	if err != nil {
		return nil, err
	}
	if store.BusinessID == nil || *store.BusinessID != businessID {
		return nil, &errors.ErrForbidden{Message: "store is not linked to this business"}
	}

	var product *domain.Product
	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		product, err = repos.Product.GetByID(ctx, businessID, productID)
		if err != nil {
			return err
		}
		if product.HasVariant(shop, req.VariantID) {
			return nil
		}

		current, err := repos.Product.GetByMappedVariant(ctx, businessID, domain.VariantKey(shop, req.VariantID))
		if err != nil && !isNotFound(err) {
			return err
		}
		if current != nil {
			if !req.Force {
				return &errors.ErrConflict{Message: fmt.Sprintf("variant %d is already mapped to SKU %s", req.VariantID, current.SKU)}
			}
			current.RemoveVariant(shop, req.VariantID)
			if err := repos.Product.Update(ctx, current); err != nil {
				return err
			}
		}

		product.AddVariant(domain.VariantMapping{
			Shop:         shop,
			VariantID:    req.VariantID,
			ProductTitle: req.ProductTitle,
			VariantTitle: req.VariantTitle,
			MappedAt:     s.now(),
		})
		return repos.Product.Update(ctx, product)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) UnmapVariant(ctx context.Context, businessID, productID uuid.UUID, shop string, variantID int64) (*domain.Product, error) {
	product, err := s.repos.Product.GetByID(ctx, businessID, productID)
	if err != nil {
		return nil, err
	}
	shop = shopify.NormalizeShopDomain(shop)
	if !product.RemoveVariant(shop, variantID) {
		return nil, &errors.ErrNotFound{Resource: "variant mapping", ID: domain.VariantKey(shop, variantID)}
	}
	if err := s.repos.Product.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// BulkTemplate returns the xlsx upload template
func (s *productService) BulkTemplate() ([]byte, error) {
	return documents.ProductTemplate()
}

// BulkUpload validates the whole workbook before writing anything. When any row is
// rejected the result carries the row errors and nothing is written.
func (s *productService) BulkUpload(ctx context.Context, businessID uuid.UUID, mode string, file io.Reader) (*BulkUploadResult, error) {
	switch mode {
	case UploadCreate, UploadUpdate, UploadUpsert:
	case "":
		mode = UploadUpsert
	default:
		return nil, errors.Validation("mode must be create, update or upsert")
	}

	rows, rowErrs, err := documents.ParseProductSheet(file)
	if err != nil {
		return nil, errors.Validation("%v", err)
	}
	result := &BulkUploadResult{Mode: mode, Errors: rowErrs}

	firstSeen := map[string]int{}
	var products []*domain.Product
	var outcomes []documents.ResultRow
	for _, row := range rows {
		if prev, ok := firstSeen[row.SKU]; ok {
			result.Errors = append(result.Errors, documents.RowError{
				Row: row.Row, SKU: row.SKU, Field: "sku",
				Message: fmt.Sprintf("duplicate SKU, first seen on row %d", prev),
			})
			continue
		}
		firstSeen[row.SKU] = row.Row

		existing, err := s.repos.Product.GetBySKU(ctx, businessID, row.SKU)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		switch {
		case existing != nil && mode == UploadCreate:
			result.Errors = append(result.Errors, documents.RowError{Row: row.Row, SKU: row.SKU, Field: "sku", Message: "SKU already exists"})
			continue
		case existing == nil && mode == UploadUpdate:
			result.Errors = append(result.Errors, documents.RowError{Row: row.Row, SKU: row.SKU, Field: "sku", Message: "SKU does not exist"})
			continue
		case existing == nil && row.Name == "":
			result.Errors = append(result.Errors, documents.RowError{Row: row.Row, SKU: row.SKU, Field: "name", Message: "name is required for new products"})
			continue
		}

		p := &domain.Product{
			BusinessID:  businessID,
			SKU:         row.SKU,
			Name:        row.Name,
			Category:    row.Category,
			Price:       row.Price,
			WeightGrams: row.WeightGrams,
		}
		status := "created"
		if existing != nil {
			status = "updated"
			if p.Name == "" {
				p.Name = existing.Name
			}
			result.Updated++
		} else {
			result.Created++
		}
		products = append(products, p)
		outcomes = append(outcomes, documents.ResultRow{Row: row.Row, SKU: row.SKU, Status: status})
	}

	if len(result.Errors) > 0 {
		sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Row < result.Errors[j].Row })
		result.Created, result.Updated = 0, 0
		result.ResultURL = s.uploadResult(ctx, businessID, errorRows(result.Errors, outcomes))
		return result, nil
	}

	for _, chunk := range repository.Chunk(products, repository.BatchSize) {
		if err := s.repos.Product.UpsertBatch(ctx, chunk); err != nil {
			return nil, err
		}
	}
	s.logger.Info("Bulk product upload",
		zap.String("business_id", businessID.String()),
		zap.String("mode", mode),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
	)
	result.ResultURL = s.uploadResult(ctx, businessID, outcomes)
	return result, nil
}

// errorRows merges rejected rows with rows that would have been written
func errorRows(rowErrs []documents.RowError, ok []documents.ResultRow) []documents.ResultRow {
	out := make([]documents.ResultRow, 0, len(rowErrs)+len(ok))
	for _, e := range rowErrs {
		out = append(out, documents.ResultRow{Row: e.Row, SKU: e.SKU, Status: "error", Message: e.Message})
	}
	for _, r := range ok {
		r.Status = "skipped"
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

func (s *productService) uploadResult(ctx context.Context, businessID uuid.UUID, rows []documents.ResultRow) string {
	data, err := documents.ProductUploadResult(rows)
	if err != nil {
		s.logger.Warn("Failed to render upload result", zap.Error(err))
		return ""
	}
	name := fmt.Sprintf("businesses/%s/product-uploads/%s.xlsx", businessID, uuid.NewString())
	url, err := s.storage.Upload(ctx, name, data, storage.ContentTypeXLSX)
	if err != nil {
		s.logger.Warn("Failed to upload result workbook", zap.String("object", name), zap.Error(err))
		return ""
	}
	return url
}
