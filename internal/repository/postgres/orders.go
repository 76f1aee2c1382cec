package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type orderRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db dbtx, logger *zap.Logger) *orderRepository {
	return &orderRepository{
		db:     db,
		logger: logger,
	}
}

const orderColumns = `
	id, shop, shopify_order_id, name, email, phone, customer_name,
	financial_status, fulfillment_status, custom_status, pickup_ready,
	total_price, currency, payment_gateways, is_cod, line_items, shipping_address,
	awb, courier, cancelled_at, delivered_at, shopify_created_at, shopify_updated_at,
	raw, created_at, updated_at`

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26)
	`

	now := time.Now()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	args, err := orderArgs(order)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return &errors.ErrConflict{Message: "order already exists"}
		}
		r.logger.Error("Failed to create order", zap.Error(err))
		return err
	}
	return nil
}

func (r *orderRepository) Update(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders SET
			shop = $2, shopify_order_id = $3, name = $4, email = $5, phone = $6, customer_name = $7,
			financial_status = $8, fulfillment_status = $9, custom_status = $10, pickup_ready = $11,
			total_price = $12, currency = $13, payment_gateways = $14, is_cod = $15, line_items = $16,
			shipping_address = $17, awb = $18, courier = $19, cancelled_at = $20, delivered_at = $21,
			shopify_created_at = $22, shopify_updated_at = $23, raw = $24, created_at = $25, updated_at = $26
		WHERE id = $1
	`

	order.UpdatedAt = time.Now()
	args, err := orderArgs(order)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update order", zap.String("order_id", order.ID.String()), zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrNotFound{Resource: "order", ID: order.ID.String()}
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, shop string, id uuid.UUID) (*domain.Order, error) {
	return r.getOne(ctx, id.String(), `WHERE shop = $1 AND id = $2`, shop, id)
}

func (r *orderRepository) GetByShopifyID(ctx context.Context, shop string, shopifyOrderID int64) (*domain.Order, error) {
	return r.getOne(ctx, "shopify:"+itoa(shopifyOrderID), `WHERE shop = $1 AND shopify_order_id = $2`, shop, shopifyOrderID)
}

// GetByName accepts the order name with or without the leading '#'
func (r *orderRepository) GetByName(ctx context.Context, shop, name string) (*domain.Order, error) {
	name = "#" + strings.TrimPrefix(strings.TrimSpace(name), "#")
	return r.getOne(ctx, name, `WHERE shop = $1 AND name = $2`, shop, name)
}

func (r *orderRepository) getOne(ctx context.Context, ref, where string, args ...interface{}) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ` + where

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: ref}
	}
	if err != nil {
		r.logger.Error("Failed to get order", zap.String("ref", ref), zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) List(ctx context.Context, shop string, filter repository.OrderFilter) ([]*domain.Order, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE shop = $1`
	args := []interface{}{shop}
	if filter.Status != "" {
		query += ` AND custom_status = $2`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY shopify_created_at DESC NULLS LAST, created_at DESC`
	query += ` LIMIT ` + itoa(int64(limit)) + ` OFFSET ` + itoa(int64(filter.Offset))

	return r.list(ctx, query, args...)
}

func (r *orderRepository) ListWithAWBByStatuses(ctx context.Context, shop string, statuses []domain.CustomStatus, limit int) ([]*domain.Order, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE shop = $1 AND awb IS NOT NULL AND awb <> '' AND custom_status = ANY($2)
		ORDER BY updated_at
		LIMIT $3`
	return r.list(ctx, query, shop, pq.Array(names), limit)
}

func (r *orderRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Error("Failed to scan order", zap.Error(err))
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (r *orderRepository) Delete(ctx context.Context, shop string, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE shop = $1 AND id = $2`, shop, id)
	if err != nil {
		r.logger.Error("Failed to delete order", zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	return nil
}

func orderArgs(o *domain.Order) ([]interface{}, error) {
	lineItemsJSON, err := json.Marshal(o.LineItems)
	if err != nil {
		return nil, err
	}
	var addressJSON []byte
	if o.ShippingAddress != nil {
		if addressJSON, err = json.Marshal(o.ShippingAddress); err != nil {
			return nil, err
		}
	}
	gateways := o.PaymentGateways
	if gateways == nil {
		gateways = []string{}
	}
	return []interface{}{
		o.ID,
		o.Shop,
		o.ShopifyOrderID,
		o.Name,
		nullString(o.Email),
		nullString(o.Phone),
		nullString(o.CustomerName),
		nullString(o.FinancialStatus),
		nullString(o.FulfillmentStatus),
		o.CustomStatus,
		o.PickupReady,
		o.TotalPrice,
		nullString(o.Currency),
		pq.Array(gateways),
		o.IsCOD,
		lineItemsJSON,
		nullJSON(addressJSON),
		nullString(o.AWB),
		nullString(o.Courier),
		o.CancelledAt,
		o.DeliveredAt,
		nullTime(o.ShopifyCreatedAt),
		nullTime(o.ShopifyUpdatedAt),
		nullJSON(o.Raw),
		o.CreatedAt,
		o.UpdatedAt,
	}, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var email, phone, customerName, financialStatus, fulfillmentStatus sql.NullString
	var currency, awb, courier sql.NullString
	var gateways pq.StringArray
	var lineItemsJSON, addressJSON, raw []byte
	var cancelledAt, deliveredAt, shopifyCreatedAt, shopifyUpdatedAt sql.NullTime

	err := row.Scan(
		&o.ID,
		&o.Shop,
		&o.ShopifyOrderID,
		&o.Name,
		&email,
		&phone,
		&customerName,
		&financialStatus,
		&fulfillmentStatus,
		&o.CustomStatus,
		&o.PickupReady,
		&o.TotalPrice,
		&currency,
		&gateways,
		&o.IsCOD,
		&lineItemsJSON,
		&addressJSON,
		&awb,
		&courier,
		&cancelledAt,
		&deliveredAt,
		&shopifyCreatedAt,
		&shopifyUpdatedAt,
		&raw,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Email = email.String
	o.Phone = phone.String
	o.CustomerName = customerName.String
	o.FinancialStatus = financialStatus.String
	o.FulfillmentStatus = fulfillmentStatus.String
	o.Currency = currency.String
	o.AWB = awb.String
	o.Courier = courier.String
	o.PaymentGateways = []string(gateways)
	if cancelledAt.Valid {
		o.CancelledAt = &cancelledAt.Time
	}
	if deliveredAt.Valid {
		o.DeliveredAt = &deliveredAt.Time
	}
	o.ShopifyCreatedAt = shopifyCreatedAt.Time
	o.ShopifyUpdatedAt = shopifyUpdatedAt.Time
	if len(raw) > 0 {
		o.Raw = json.RawMessage(raw)
	}
	if len(lineItemsJSON) > 0 {
		if err := json.Unmarshal(lineItemsJSON, &o.LineItems); err != nil {
			return nil, err
		}
	}
	if len(addressJSON) > 0 {
		o.ShippingAddress = &domain.Address{}
		if err := json.Unmarshal(addressJSON, o.ShippingAddress); err != nil {
			return nil, err
		}
	}
	return &o, nil
}
