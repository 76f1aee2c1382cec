package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
)

type upcRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewUPCRepository creates a new inventory unit repository
func NewUPCRepository(db dbtx, logger *zap.Logger) *upcRepository {
	return &upcRepository{db: db, logger: logger}
}

const upcColumns = `id, business_id, sku, warehouse_id, grn_id, purchase_order_id, put_away, location, shop, order_id, created_at, updated_at`

// CreateBatch inserts units with one multi-row statement per chunk
func (r *upcRepository) CreateBatch(ctx context.Context, upcs []*domain.UPC) error {
	now := time.Now()
	const cols = 12
	for _, chunk := range repository.Chunk(upcs, repository.BatchSize) {
		args := make([]interface{}, 0, len(chunk)*cols)
		placeholders := make([]string, 0, len(chunk))
		for i, u := range chunk {
			if u.ID == uuid.Nil {
				u.ID = uuid.New()
			}
			if u.CreatedAt.IsZero() {
				u.CreatedAt = now
			}
			u.UpdatedAt = now
			ph := make([]string, cols)
			for j := range ph {
				ph[j] = fmt.Sprintf("$%d", i*cols+j+1)
			}
			placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")
			args = append(args, upcArgs(u)...)
		}
		query := `INSERT INTO upcs (` + upcColumns + `) VALUES ` + strings.Join(placeholders, ", ")
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			r.logger.Error("Failed to create UPC batch", zap.Int("count", len(chunk)), zap.Error(err))
			return err
		}
	}
	return nil
}

// UpdateBatch writes put-away state, location and order binding of each unit
func (r *upcRepository) UpdateBatch(ctx context.Context, upcs []*domain.UPC) error {
	now := time.Now()
	for _, chunk := range repository.Chunk(upcs, repository.BatchSize) {
		for _, u := range chunk {
			u.UpdatedAt = now
			_, err := r.db.ExecContext(ctx, `
				UPDATE upcs SET put_away = $3, location = $4, shop = $5, order_id = $6, updated_at = $7
				WHERE business_id = $1 AND id = $2
			`, u.BusinessID, u.ID, u.PutAway, nullString(u.Location), nullString(u.Shop), nullUUID(u.OrderID), u.UpdatedAt)
			if err != nil {
				r.logger.Error("Failed to update UPC", zap.String("upc_id", u.ID.String()), zap.Error(err))
				return err
			}
		}
	}
	return nil
}

func (r *upcRepository) GetByIDs(ctx context.Context, businessID uuid.UUID, ids []uuid.UUID) ([]*domain.UPC, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+upcColumns+` FROM upcs
		WHERE business_id = $1 AND id = ANY($2::uuid[])`, businessID, pq.Array(strIDs))
	if err != nil {
		r.logger.Error("Failed to get UPCs", zap.Error(err))
		return nil, err
	}
	return collectUPCs(rows)
}

func (r *upcRepository) List(ctx context.Context, businessID uuid.UUID, filter repository.UPCFilter) ([]*domain.UPC, error) {
	query := `SELECT ` + upcColumns + ` FROM upcs WHERE business_id = $1`
	args := []interface{}{businessID}
	if filter.SKU != "" {
		args = append(args, filter.SKU)
		query += ` AND sku = $` + itoa(int64(len(args)))
	}
	if filter.PutAway != "" {
		args = append(args, filter.PutAway)
		query += ` AND put_away = $` + itoa(int64(len(args)))
	}
	if filter.WarehouseID != nil {
		args = append(args, *filter.WarehouseID)
		query += ` AND warehouse_id = $` + itoa(int64(len(args)))
	}
	if filter.OrderID != nil {
		args = append(args, *filter.OrderID)
		query += ` AND order_id = $` + itoa(int64(len(args)))
	}
	query += ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + itoa(int64(len(args)))
	}
	if _, inTx := r.db.(*sql.Tx); inTx {
		query += ` FOR UPDATE`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list UPCs", zap.Error(err))
		return nil, err
	}
	return collectUPCs(rows)
}

func (r *upcRepository) Summary(ctx context.Context, businessID uuid.UUID) ([]domain.InventorySummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sku, put_away, COUNT(*)
		FROM upcs WHERE business_id = $1
		GROUP BY sku, put_away
		ORDER BY sku
	`, businessID)
	if err != nil {
		r.logger.Error("Failed to summarise inventory", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []domain.InventorySummary
	index := map[string]int{}
	for rows.Next() {
		var sku string
		var state domain.PutAwayState
		var count int
		if err := rows.Scan(&sku, &state, &count); err != nil {
			return nil, err
		}
		i, ok := index[sku]
		if !ok {
			i = len(out)
			index[sku] = i
			out = append(out, domain.InventorySummary{SKU: sku, Counts: map[domain.PutAwayState]int{}})
		}
		out[i].Counts[state] = count
	}
	return out, rows.Err()
}

func upcArgs(u *domain.UPC) []interface{} {
	return []interface{}{
		u.ID,
		u.BusinessID,
		u.SKU,
		u.WarehouseID,
		nullUUID(u.GRNID),
		nullUUID(u.PurchaseOrderID),
		u.PutAway,
		nullString(u.Location),
		nullString(u.Shop),
		nullUUID(u.OrderID),
		u.CreatedAt,
		u.UpdatedAt,
	}
}

func collectUPCs(rows *sql.Rows) ([]*domain.UPC, error) {
	defer rows.Close()
	var out []*domain.UPC
	for rows.Next() {
		var u domain.UPC
		var grnID, poID, orderID uuid.NullUUID
		var location, shop sql.NullString
		if err := rows.Scan(
			&u.ID, &u.BusinessID, &u.SKU, &u.WarehouseID, &grnID, &poID,
			&u.PutAway, &location, &shop, &orderID, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		u.GRNID = uuidPtr(grnID)
		u.PurchaseOrderID = uuidPtr(poID)
		u.OrderID = uuidPtr(orderID)
		u.Location = location.String
		u.Shop = shop.String
		out = append(out, &u)
	}
	return out, rows.Err()
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}
