package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type supplierRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(db dbtx, logger *zap.Logger) *supplierRepository {
	return &supplierRepository{db: db, logger: logger}
}

func (r *supplierRepository) Create(ctx context.Context, s *domain.Supplier) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, business_id, name, phone, email, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.BusinessID, s.Name, nullString(s.Phone), nullString(s.Email), nullString(s.Address), s.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create supplier", zap.Error(err))
		return err
	}
	return nil
}

func (r *supplierRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Supplier, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, business_id, name, phone, email, address, created_at
		FROM suppliers WHERE business_id = $1 AND id = $2
	`, businessID, id)
	s, err := scanSupplier(row)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "supplier", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get supplier", zap.Error(err))
		return nil, err
	}
	return s, nil
}

func (r *supplierRepository) List(ctx context.Context, businessID uuid.UUID) ([]*domain.Supplier, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, business_id, name, phone, email, address, created_at
		FROM suppliers WHERE business_id = $1 ORDER BY name
	`, businessID)
	if err != nil {
		r.logger.Error("Failed to list suppliers", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSupplier(row rowScanner) (*domain.Supplier, error) {
	var s domain.Supplier
	var phone, email, address sql.NullString
	if err := row.Scan(&s.ID, &s.BusinessID, &s.Name, &phone, &email, &address, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Phone, s.Email, s.Address = phone.String, email.String, address.String
	return &s, nil
}

type warehouseRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewWarehouseRepository creates a new warehouse repository
func NewWarehouseRepository(db dbtx, logger *zap.Logger) *warehouseRepository {
	return &warehouseRepository{db: db, logger: logger}
}

func (r *warehouseRepository) Create(ctx context.Context, w *domain.Warehouse) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO warehouses (id, business_id, name, code, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, w.ID, w.BusinessID, w.Name, w.Code, nullString(w.Address), w.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &errors.ErrConflict{Message: "warehouse code already exists: " + w.Code}
		}
		r.logger.Error("Failed to create warehouse", zap.Error(err))
		return err
	}
	return nil
}

func (r *warehouseRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Warehouse, error) {
	return r.getOne(ctx, id.String(), `business_id = $1 AND id = $2`, businessID, id)
}

func (r *warehouseRepository) GetByCode(ctx context.Context, businessID uuid.UUID, code string) (*domain.Warehouse, error) {
	return r.getOne(ctx, code, `business_id = $1 AND code = $2`, businessID, code)
}

func (r *warehouseRepository) getOne(ctx context.Context, ref, where string, args ...interface{}) (*domain.Warehouse, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, business_id, name, code, address, created_at
		FROM warehouses WHERE `+where, args...)
	w, err := scanWarehouse(row)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "warehouse", ID: ref}
	}
	if err != nil {
		r.logger.Error("Failed to get warehouse", zap.Error(err))
		return nil, err
	}
	return w, nil
}

func (r *warehouseRepository) List(ctx context.Context, businessID uuid.UUID) ([]*domain.Warehouse, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, business_id, name, code, address, created_at
		FROM warehouses WHERE business_id = $1 ORDER BY code
	`, businessID)
	if err != nil {
		r.logger.Error("Failed to list warehouses", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanWarehouse(row rowScanner) (*domain.Warehouse, error) {
	var w domain.Warehouse
	var address sql.NullString
	if err := row.Scan(&w.ID, &w.BusinessID, &w.Name, &w.Code, &address, &w.CreatedAt); err != nil {
		return nil, err
	}
	w.Address = address.String
	return &w, nil
}

type counterRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewCounterRepository creates a new document counter repository
func NewCounterRepository(db dbtx, logger *zap.Logger) *counterRepository {
	return &counterRepository{db: db, logger: logger}
}

// Next increments and returns the counter. Inside a transaction the row stays
// locked until commit, so numbers are gap-free per business.
func (r *counterRepository) Next(ctx context.Context, businessID uuid.UUID, name string) (int64, error) {
	var value int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO counters (business_id, name, value) VALUES ($1, $2, 1)
		ON CONFLICT (business_id, name) DO UPDATE SET value = counters.value + 1
		RETURNING value
	`, businessID, name).Scan(&value)
	if err != nil {
		r.logger.Error("Failed to increment counter", zap.String("counter", name), zap.Error(err))
		return 0, err
	}
	return value, nil
}

type purchaseOrderRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewPurchaseOrderRepository creates a new purchase order repository
func NewPurchaseOrderRepository(db dbtx, logger *zap.Logger) *purchaseOrderRepository {
	return &purchaseOrderRepository{db: db, logger: logger}
}

const purchaseOrderColumns = `id, business_id, number, supplier_id, warehouse_id, status, expected_date, notes,
	items, total_amount, created_by, status_logs, created_at, updated_at`

func (r *purchaseOrderRepository) Create(ctx context.Context, po *domain.PurchaseOrder) error {
	now := time.Now()
	if po.ID == uuid.Nil {
		po.ID = uuid.New()
	}
	if po.CreatedAt.IsZero() {
		po.CreatedAt = now
	}
	po.UpdatedAt = now

	args, err := purchaseOrderArgs(po)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO purchase_orders (`+purchaseOrderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return &errors.ErrConflict{Message: "purchase order number already used: " + po.Number}
		}
		r.logger.Error("Failed to create purchase order", zap.Error(err))
		return err
	}
	return nil
}

func (r *purchaseOrderRepository) Update(ctx context.Context, po *domain.PurchaseOrder) error {
	po.UpdatedAt = time.Now()
	args, err := purchaseOrderArgs(po)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE purchase_orders SET
			number = $3, supplier_id = $4, warehouse_id = $5, status = $6, expected_date = $7, notes = $8,
			items = $9, total_amount = $10, created_by = $11, status_logs = $12, created_at = $13, updated_at = $14
		WHERE id = $1 AND business_id = $2
	`, args...)
	if err != nil {
		r.logger.Error("Failed to update purchase order", zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrNotFound{Resource: "purchase_order", ID: po.ID.String()}
	}
	return nil
}

// GetByID locks the row when called inside a transaction
func (r *purchaseOrderRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE business_id = $1 AND id = $2`
	if _, inTx := r.db.(*sql.Tx); inTx {
		query += ` FOR UPDATE`
	}
	po, err := scanPurchaseOrder(r.db.QueryRowContext(ctx, query, businessID, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "purchase_order", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get purchase order", zap.Error(err))
		return nil, err
	}
	return po, nil
}

func (r *purchaseOrderRepository) List(ctx context.Context, businessID uuid.UUID, status domain.POStatus) ([]*domain.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE business_id = $1`
	args := []interface{}{businessID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list purchase orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PurchaseOrder
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

func (r *purchaseOrderRepository) HasOpenForSKU(ctx context.Context, businessID uuid.UUID, sku string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM purchase_orders
			WHERE business_id = $1
				AND status NOT IN ('closed', 'cancelled')
				AND items @> jsonb_build_array(jsonb_build_object('sku', $2::text))
		)
	`, businessID, sku).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check open purchase orders for SKU", zap.Error(err))
		return false, err
	}
	return exists, nil
}

func purchaseOrderArgs(po *domain.PurchaseOrder) ([]interface{}, error) {
	itemsJSON, err := json.Marshal(po.Items)
	if err != nil {
		return nil, err
	}
	logs := po.StatusLogs
	if logs == nil {
		logs = []domain.POStatusLog{}
	}
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		po.ID,
		po.BusinessID,
		po.Number,
		po.SupplierID,
		po.WarehouseID,
		po.Status,
		po.ExpectedDate,
		nullString(po.Notes),
		itemsJSON,
		po.TotalAmount,
		nullString(po.CreatedBy),
		logsJSON,
		po.CreatedAt,
		po.UpdatedAt,
	}, nil
}

func scanPurchaseOrder(row rowScanner) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	var expected sql.NullTime
	var notes, createdBy sql.NullString
	var itemsJSON, logsJSON []byte

	if err := row.Scan(
		&po.ID,
		&po.BusinessID,
		&po.Number,
		&po.SupplierID,
		&po.WarehouseID,
		&po.Status,
		&expected,
		&notes,
		&itemsJSON,
		&po.TotalAmount,
		&createdBy,
		&logsJSON,
		&po.CreatedAt,
		&po.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if expected.Valid {
		po.ExpectedDate = &expected.Time
	}
	po.Notes = notes.String
	po.CreatedBy = createdBy.String
	if err := json.Unmarshal(itemsJSON, &po.Items); err != nil {
		return nil, err
	}
	if len(logsJSON) > 0 {
		if err := json.Unmarshal(logsJSON, &po.StatusLogs); err != nil {
			return nil, err
		}
	}
	return &po, nil
}

type grnRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewGRNRepository creates a new goods receipt note repository
func NewGRNRepository(db dbtx, logger *zap.Logger) *grnRepository {
	return &grnRepository{db: db, logger: logger}
}

const grnColumns = `id, business_id, number, purchase_order_id, po_number, warehouse_id, received_by, received_at, notes, items, created_at`

func (r *grnRepository) Create(ctx context.Context, g *domain.GRN) error {
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
	itemsJSON, err := json.Marshal(g.Items)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO grns (`+grnColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		g.ID, g.BusinessID, g.Number, g.PurchaseOrderID, g.PONumber, g.WarehouseID,
		nullString(g.ReceivedBy), g.ReceivedAt, nullString(g.Notes), itemsJSON, g.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create GRN", zap.Error(err))
		return err
	}
	return nil
}

func (r *grnRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.GRN, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+grnColumns+` FROM grns WHERE business_id = $1 AND id = $2`, businessID, id)
	g, err := scanGRN(row)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "grn", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get GRN", zap.Error(err))
		return nil, err
	}
	return g, nil
}

func (r *grnRepository) ListByPurchaseOrder(ctx context.Context, businessID, purchaseOrderID uuid.UUID) ([]*domain.GRN, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+grnColumns+` FROM grns
		WHERE business_id = $1 AND purchase_order_id = $2 ORDER BY received_at`, businessID, purchaseOrderID)
	if err != nil {
		r.logger.Error("Failed to list GRNs", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []*domain.GRN
	for rows.Next() {
		g, err := scanGRN(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGRN(row rowScanner) (*domain.GRN, error) {
	var g domain.GRN
	var receivedBy, notes sql.NullString
	var itemsJSON []byte
	if err := row.Scan(
		&g.ID, &g.BusinessID, &g.Number, &g.PurchaseOrderID, &g.PONumber, &g.WarehouseID,
		&receivedBy, &g.ReceivedAt, &notes, &itemsJSON, &g.CreatedAt,
	); err != nil {
		return nil, err
	}
	g.ReceivedBy = receivedBy.String
	g.Notes = notes.String
	if err := json.Unmarshal(itemsJSON, &g.Items); err != nil {
		return nil, err
	}
	return &g, nil
}
