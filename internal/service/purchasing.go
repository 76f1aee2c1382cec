package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/documents"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/pkg/errors"
)

// Idempotency resource types
const (
	resourcePurchaseOrder = "purchase_order"
	resourceGRN           = "grn"
)

type purchasingService struct {
	repos  *repository.Repositories
	logger *zap.Logger
	now    func() time.Time
}

// NewPurchasingService creates the supplier, purchase order and goods receipt service
func NewPurchasingService(d Deps) *purchasingService {
	return &purchasingService{repos: d.Repos, logger: d.Logger, now: d.Now}
}

// Suppliers

func (s *purchasingService) CreateSupplier(ctx context.Context, businessID uuid.UUID, req SupplierRequest) (*domain.Supplier, error) {
	supplier := &domain.Supplier{
		BusinessID: businessID,
		Name:       strings.TrimSpace(req.Name),
		Phone:      strings.TrimSpace(req.Phone),
		Email:      strings.TrimSpace(req.Email),
		Address:    strings.TrimSpace(req.Address),
	}
	if err := s.repos.Supplier.Create(ctx, supplier); err != nil {
		return nil, err
	}
	return supplier, nil
}

func (s *purchasingService) GetSupplier(ctx context.Context, businessID, id uuid.UUID) (*domain.Supplier, error) {
	return s.repos.Supplier.GetByID(ctx, businessID, id)
}

func (s *purchasingService) ListSuppliers(ctx context.Context, businessID uuid.UUID) ([]*domain.Supplier, error) {
	return s.repos.Supplier.List(ctx, businessID)
}

// Warehouses

// CreateWarehouse requires the code to be unique within the business
func (s *purchasingService) CreateWarehouse(ctx context.Context, businessID uuid.UUID, req WarehouseRequest) (*domain.Warehouse, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if _, err := s.repos.Warehouse.GetByCode(ctx, businessID, code); err == nil {
		return nil, &errors.ErrConflict{Message: "warehouse code already exists: " + code}
	} else if !isNotFound(err) {
		return nil, err
	}
	warehouse := &domain.Warehouse{
		BusinessID: businessID,
		Name:       strings.TrimSpace(req.Name),
		Code:       code,
		Address:    strings.TrimSpace(req.Address),
	}
	if err := s.repos.Warehouse.Create(ctx, warehouse); err != nil {
		return nil, err
	}
	return warehouse, nil
}

func (s *purchasingService) GetWarehouse(ctx context.Context, businessID, id uuid.UUID) (*domain.Warehouse, error) {
	return s.repos.Warehouse.GetByID(ctx, businessID, id)
}

func (s *purchasingService) ListWarehouses(ctx context.Context, businessID uuid.UUID) ([]*domain.Warehouse, error) {
	return s.repos.Warehouse.List(ctx, businessID)
}

// Purchase orders

// replay returns the resource id a previous identical request created. A key reused
// with a different body is a conflict.
func replay(ctx context.Context, repos *repository.Repositories, idem *Idempotency, resourceType string) (uuid.UUID, bool, error) {
	if idem == nil || idem.Key == "" {
		return uuid.Nil, false, nil
	}
	existing, err := repos.IdempotencyKey.GetByKey(ctx, idem.Scope, idem.Key)
	if err != nil || existing == nil {
		return uuid.Nil, false, err
	}
	if existing.RequestHash != idem.RequestHash || existing.ResourceType != resourceType {
		return uuid.Nil, false, &errors.ErrConflict{Message: "idempotency key conflict: same key used with different payload"}
	}
	id, err := uuid.Parse(existing.ResourceID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("corrupt idempotency record %s: %w", idem.Key, err)
	}
	return id, true, nil
}

func remember(ctx context.Context, repos *repository.Repositories, idem *Idempotency, resourceType string, id uuid.UUID) error {
	if idem == nil || idem.Key == "" {
		return nil
	}
	return repos.IdempotencyKey.Create(ctx, &domain.IdempotencyKey{
		Key:          idem.Key,
		Scope:        idem.Scope,
		ResourceType: resourceType,
		ResourceID:   id.String(),
		RequestHash:  idem.RequestHash,
	})
}

// buildItems validates the requested lines against the catalog
func buildItems(ctx context.Context, repos *repository.Repositories, businessID uuid.UUID, reqItems []POItemRequest) ([]domain.PurchaseOrderItem, error) {
	if len(reqItems) == 0 {
		return nil, errors.Validation("at least one item is required")
	}
	fields := map[string]string{}
	seen := map[string]bool{}
	items := make([]domain.PurchaseOrderItem, 0, len(reqItems))
	for i, it := range reqItems {
		sku := strings.TrimSpace(it.SKU)
		prefix := fmt.Sprintf("items[%d]", i)
		if seen[sku] {
			fields[prefix+".sku"] = "duplicate SKU " + sku
			continue
		}
		seen[sku] = true
		if it.OrderedQty <= 0 {
			fields[prefix+".orderedQty"] = "must be > 0"
		}
		if it.UnitCost.IsNegative() {
			fields[prefix+".unitCost"] = "must be >= 0"
		}
		product, err := repos.Product.GetBySKU(ctx, businessID, sku)
		if err != nil {
			if !isNotFound(err) {
				return nil, err
			}
			fields[prefix+".sku"] = "unknown SKU " + sku
			continue
		}
		items = append(items, domain.PurchaseOrderItem{
			SKU:         sku,
			ProductName: product.Name,
			OrderedQty:  it.OrderedQty,
			UnitCost:    it.UnitCost,
			Status:      domain.POItemPending,
		})
	}
	if len(fields) > 0 {
		return nil, &errors.ErrValidation{Message: "invalid purchase order items", Fields: fields}
	}
	return items, nil
}

// CreatePurchaseOrder numbers the PO from the business counter inside the same transaction.
// The bool reports whether an earlier identical request was replayed.
func (s *purchasingService) CreatePurchaseOrder(ctx context.Context, businessID uuid.UUID, uid string, req CreatePORequest, idem *Idempotency) (*domain.PurchaseOrder, bool, error) {
	status := req.Status
	if status == "" {
		status = domain.POStatusDraft
	}
	if status != domain.POStatusDraft && status != domain.POStatusConfirmed {
		return nil, false, errors.Validation("initial status must be draft or confirmed")
	}

	var po *domain.PurchaseOrder
	replayed := false
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		id, ok, err := replay(ctx, repos, idem, resourcePurchaseOrder)
		if err != nil {
			return err
		}
		if ok {
			replayed = true
			po, err = repos.PurchaseOrder.GetByID(ctx, businessID, id)
			return err
		}

		if _, err := repos.Supplier.GetByID(ctx, businessID, req.SupplierID); err != nil {
			return err
		}
		if _, err := repos.Warehouse.GetByID(ctx, businessID, req.WarehouseID); err != nil {
			return err
		}
		items, err := buildItems(ctx, repos, businessID, req.Items)
		if err != nil {
			return err
		}
		n, err := repos.Counter.Next(ctx, businessID, domain.CounterPurchaseOrder)
		if err != nil {
			return err
		}

		po = &domain.PurchaseOrder{
			BusinessID:   businessID,
			Number:       domain.FormatPONumber(n),
			SupplierID:   req.SupplierID,
			WarehouseID:  req.WarehouseID,
			Status:       status,
			ExpectedDate: req.ExpectedDate,
			Notes:        strings.TrimSpace(req.Notes),
			Items:        items,
			CreatedBy:    uid,
		}
		po.RecalculateTotal()
		po.AppendLog(status, "Purchase order created", uid, s.now())
		if err := repos.PurchaseOrder.Create(ctx, po); err != nil {
			return err
		}
		return remember(ctx, repos, idem, resourcePurchaseOrder, po.ID)
	})
	if err != nil {
		return nil, false, err
	}
	if !replayed {
		s.logger.Info("Purchase order created",
			zap.String("business_id", businessID.String()),
			zap.String("number", po.Number),
			zap.String("total", po.TotalAmount.StringFixed(2)),
		)
	}
	return po, replayed, nil
}

// UpdatePurchaseOrder edits a draft
func (s *purchasingService) UpdatePurchaseOrder(ctx context.Context, businessID, id uuid.UUID, req UpdatePORequest) (*domain.PurchaseOrder, error) {
	var po *domain.PurchaseOrder
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		po, err = repos.PurchaseOrder.GetByID(ctx, businessID, id)
		if err != nil {
			return err
		}
		if po.Status != domain.POStatusDraft {
			return &errors.ErrConflict{Message: fmt.Sprintf("purchase order %s is %s; only drafts can be edited", po.Number, po.Status)}
		}
		if req.Items != nil {
			items, err := buildItems(ctx, repos, businessID, req.Items)
			if err != nil {
				return err
			}
			po.Items = items
			po.RecalculateTotal()
		}
		if req.Notes != nil {
			po.Notes = strings.TrimSpace(*req.Notes)
		}
		if req.ExpectedDate != nil {
			po.ExpectedDate = req.ExpectedDate
		}
		return repos.PurchaseOrder.Update(ctx, po)
	})
	if err != nil {
		return nil, err
	}
	return po, nil
}

// UpdatePOStatus applies a manual transition. Receipt statuses only come from GRNs.
func (s *purchasingService) UpdatePOStatus(ctx context.Context, businessID, id uuid.UUID, uid string, req POStatusRequest) (*domain.PurchaseOrder, error) {
	if !req.Status.IsValid() {
		return nil, errors.Validation("unknown purchase order status %q", req.Status)
	}
	if !req.Status.IsManual() {
		return nil, errors.Validation("status %s is set by goods receipts", req.Status)
	}
	var po *domain.PurchaseOrder
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		po, err = repos.PurchaseOrder.GetByID(ctx, businessID, id)
		if err != nil {
			return err
		}
		if !po.Status.CanTransitionTo(req.Status) {
			return &errors.ErrInvalidStateTransition{Entity: "purchase order", From: string(po.Status), To: string(req.Status)}
		}
		po.Status = req.Status
		po.AppendLog(req.Status, req.Remarks, uid, s.now())
		return repos.PurchaseOrder.Update(ctx, po)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Purchase order status changed", zap.String("number", po.Number), zap.String("status", string(po.Status)))
	return po, nil
}

func (s *purchasingService) GetPurchaseOrder(ctx context.Context, businessID, id uuid.UUID) (*domain.PurchaseOrder, error) {
	return s.repos.PurchaseOrder.GetByID(ctx, businessID, id)
}

func (s *purchasingService) ListPurchaseOrders(ctx context.Context, businessID uuid.UUID, status domain.POStatus) ([]*domain.PurchaseOrder, error) {
	if status != "" && !status.IsValid() {
		return nil, errors.Validation("unknown purchase order status %q", status)
	}
	return s.repos.PurchaseOrder.List(ctx, businessID, status)
}

// PurchaseOrderPDF renders the PO with its counterparties
func (s *purchasingService) PurchaseOrderPDF(ctx context.Context, business *domain.Business, id uuid.UUID) (*domain.PurchaseOrder, []byte, error) {
	po, err := s.repos.PurchaseOrder.GetByID(ctx, business.ID, id)
	if err != nil {
		return nil, nil, err
	}
	parties := documents.PurchaseOrderParties{BusinessName: business.Name}
	if parties.Supplier, err = s.repos.Supplier.GetByID(ctx, business.ID, po.SupplierID); err != nil && !isNotFound(err) {
		return nil, nil, err
	}
	if parties.Warehouse, err = s.repos.Warehouse.GetByID(ctx, business.ID, po.WarehouseID); err != nil && !isNotFound(err) {
		return nil, nil, err
	}
	data, err := documents.PurchaseOrderPDF(po, parties)
	if err != nil {
		return nil, nil, err
	}
	return po, data, nil
}

// ExportPurchaseOrders renders the filtered list as a workbook
func (s *purchasingService) ExportPurchaseOrders(ctx context.Context, businessID uuid.UUID, status domain.POStatus) ([]byte, error) {
	pos, err := s.ListPurchaseOrders(ctx, businessID, status)
	if err != nil {
		return nil, err
	}
	names := map[uuid.UUID]string{}
	suppliers, err := s.repos.Supplier.List(ctx, businessID)
	if err != nil {
		return nil, err
	}
	for _, sup := range suppliers {
		names[sup.ID] = sup.Name
	}
	warehouses, err := s.repos.Warehouse.List(ctx, businessID)
	if err != nil {
		return nil, err
	}
	for _, w := range warehouses {
		names[w.ID] = w.Name
	}
	return documents.PurchaseOrdersExport(pos, names)
}

// Goods receipt notes

// validateGRNItems checks quantities line by line against the PO
func validateGRNItems(po *domain.PurchaseOrder, reqItems []GRNItemRequest) ([]domain.GRNItem, error) {
	if len(reqItems) == 0 {
		return nil, errors.Validation("at least one item is required")
	}
	fields := map[string]string{}
	seen := map[string]bool{}
	items := make([]domain.GRNItem, 0, len(reqItems))
	for i, it := range reqItems {
		sku := strings.TrimSpace(it.SKU)
		prefix := fmt.Sprintf("items[%d]", i)
		switch {
		case seen[sku]:
			fields[prefix+".sku"] = "duplicate SKU " + sku
			continue
		case it.ReceivedQty < 0 || it.AcceptedQty < 0 || it.RejectedQty < 0:
			fields[prefix] = "quantities must be >= 0"
			continue
		case it.ReceivedQty == 0:
			fields[prefix+".receivedQty"] = "must be > 0"
			continue
		case it.AcceptedQty+it.RejectedQty > it.ReceivedQty:
			fields[prefix] = "accepted + rejected exceeds received"
			continue
		}
		seen[sku] = true
		poItem, ok := po.Item(sku)
		if !ok {
			fields[prefix+".sku"] = fmt.Sprintf("SKU %s is not on purchase order %s", sku, po.Number)
			continue
		}
		if poItem.ReceivedQty+it.AcceptedQty > poItem.OrderedQty {
			fields[prefix+".acceptedQty"] = fmt.Sprintf("over-receipt: ordered %d, already received %d", poItem.OrderedQty, poItem.ReceivedQty)
			continue
		}
		items = append(items, domain.GRNItem{
			SKU:         sku,
			ReceivedQty: it.ReceivedQty,
			AcceptedQty: it.AcceptedQty,
			RejectedQty: it.RejectedQty,
		})
	}
	if len(fields) > 0 {
		return nil, &errors.ErrValidation{Message: "invalid goods receipt items", Fields: fields}
	}
	return items, nil
}

// CreateGRN books a receipt, updates the PO and creates one UPC per accepted unit, all in one transaction
func (s *purchasingService) CreateGRN(ctx context.Context, businessID uuid.UUID, uid string, req CreateGRNRequest, idem *Idempotency) (*domain.GRN, bool, error) {
	var grn *domain.GRN
	replayed := false
	units := 0
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		id, ok, err := replay(ctx, repos, idem, resourceGRN)
		if err != nil {
			return err
		}
		if ok {
			replayed = true
			grn, err = repos.GRN.GetByID(ctx, businessID, id)
			return err
		}

		po, err := repos.PurchaseOrder.GetByID(ctx, businessID, req.PurchaseOrderID)
		if err != nil {
			return err
		}
		if !po.Status.AcceptsReceipts() {
			return &errors.ErrConflict{Message: fmt.Sprintf("purchase order %s is %s and cannot receive goods", po.Number, po.Status)}
		}
		items, err := validateGRNItems(po, req.Items)
		if err != nil {
			return err
		}

		n, err := repos.Counter.Next(ctx, businessID, domain.CounterGRN)
		if err != nil {
			return err
		}
		now := s.now()
		receivedAt := now
		if req.ReceivedAt != nil {
			receivedAt = *req.ReceivedAt
		}
		grn = &domain.GRN{
			ID:              uuid.New(),
			BusinessID:      businessID,
			Number:          domain.FormatGRNNumber(n),
			PurchaseOrderID: po.ID,
			PONumber:        po.Number,
			WarehouseID:     po.WarehouseID,
			ReceivedBy:      uid,
			ReceivedAt:      receivedAt,
			Notes:           strings.TrimSpace(req.Notes),
			Items:           items,
		}
		if err := repos.GRN.Create(ctx, grn); err != nil {
			return err
		}

		for _, it := range items {
			poItem, _ := po.Item(it.SKU)
			poItem.ReceivedQty += it.AcceptedQty
			poItem.RejectedQty += it.RejectedQty
		}
		if next := po.DeriveReceiptStatus(); next != po.Status {
			po.Status = next
			po.AppendLog(next, "Updated by "+grn.Number, uid, now)
		}
		if err := repos.PurchaseOrder.Update(ctx, po); err != nil {
			return err
		}

		grnID, poID := grn.ID, po.ID
		upcs := make([]*domain.UPC, 0, grn.TotalAccepted())
		for _, it := range items {
			for i := 0; i < it.AcceptedQty; i++ {
				upcs = append(upcs, &domain.UPC{
					BusinessID:      businessID,
					SKU:             it.SKU,
					WarehouseID:     po.WarehouseID,
					GRNID:           &grnID,
					PurchaseOrderID: &poID,
					PutAway:         domain.PutAwayNone,
				})
			}
		}
		for _, chunk := range repository.Chunk(upcs, repository.BatchSize) {
			if err := repos.UPC.CreateBatch(ctx, chunk); err != nil {
				return err
			}
		}
		units = len(upcs)
		return remember(ctx, repos, idem, resourceGRN, grn.ID)
	})
	if err != nil {
		return nil, false, err
	}
	if !replayed {
		s.logger.Info("Goods receipt booked",
			zap.String("business_id", businessID.String()),
			zap.String("grn", grn.Number),
			zap.String("po", grn.PONumber),
			zap.Int("units", units),
		)
	}
	return grn, replayed, nil
}

func (s *purchasingService) GetGRN(ctx context.Context, businessID, id uuid.UUID) (*domain.GRN, error) {
	return s.repos.GRN.GetByID(ctx, businessID, id)
}

func (s *purchasingService) ListGRNs(ctx context.Context, businessID, purchaseOrderID uuid.UUID) ([]*domain.GRN, error) {
	if _, err := s.repos.PurchaseOrder.GetByID(ctx, businessID, purchaseOrderID); err != nil {
		return nil, err
	}
	return s.repos.GRN.ListByPurchaseOrder(ctx, businessID, purchaseOrderID)
}
