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

type checkoutSessionRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewCheckoutSessionRepository creates a new checkout session repository
func NewCheckoutSessionRepository(db dbtx, logger *zap.Logger) *checkoutSessionRepository {
	return &checkoutSessionRepository{db: db, logger: logger}
}

const checkoutSessionColumns = `id, shop, items, phone, status, payment_method, shopify_order_id, order_name, expires_at, created_at, updated_at`

func (r *checkoutSessionRepository) Create(ctx context.Context, s *domain.CheckoutSession) error {
	now := time.Now()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	args, err := checkoutSessionArgs(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO checkout_sessions (`+checkoutSessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, args...)
	if err != nil {
		r.logger.Error("Failed to create checkout session", zap.Error(err))
		return err
	}
	return nil
}

func (r *checkoutSessionRepository) GetByID(ctx context.Context, shop string, id uuid.UUID) (*domain.CheckoutSession, error) {
	query := `SELECT ` + checkoutSessionColumns + ` FROM checkout_sessions WHERE shop = $1 AND id = $2`
	if _, inTx := r.db.(*sql.Tx); inTx {
		query += ` FOR UPDATE`
	}

	var s domain.CheckoutSession
	var itemsJSON []byte
	var phone, payment, orderID, orderName sql.NullString
	err := r.db.QueryRowContext(ctx, query, shop, id).Scan(
		&s.ID, &s.Shop, &itemsJSON, &phone, &s.Status, &payment, &orderID, &orderName,
		&s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "checkout_session", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get checkout session", zap.Error(err))
		return nil, err
	}
	s.Phone = phone.String
	s.PaymentMethod = payment.String
	s.ShopifyOrderID = orderID.String
	s.OrderName = orderName.String
	if err := json.Unmarshal(itemsJSON, &s.Items); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *checkoutSessionRepository) Update(ctx context.Context, s *domain.CheckoutSession) error {
	s.UpdatedAt = time.Now()
	args, err := checkoutSessionArgs(s)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE checkout_sessions SET
			items = $3, phone = $4, status = $5, payment_method = $6, shopify_order_id = $7,
			order_name = $8, expires_at = $9, created_at = $10, updated_at = $11
		WHERE id = $1 AND shop = $2
	`, args...)
	if err != nil {
		r.logger.Error("Failed to update checkout session", zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrNotFound{Resource: "checkout_session", ID: s.ID.String()}
	}
	return nil
}

func checkoutSessionArgs(s *domain.CheckoutSession) ([]interface{}, error) {
	items := s.Items
	if items == nil {
		items = []domain.CheckoutItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		s.ID, s.Shop, itemsJSON, nullString(s.Phone), s.Status, nullString(s.PaymentMethod),
		nullString(s.ShopifyOrderID), nullString(s.OrderName), s.ExpiresAt, s.CreatedAt, s.UpdatedAt,
	}, nil
}

type checkoutCustomerRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewCheckoutCustomerRepository creates a new checkout customer repository
func NewCheckoutCustomerRepository(db dbtx, logger *zap.Logger) *checkoutCustomerRepository {
	return &checkoutCustomerRepository{db: db, logger: logger}
}

func (r *checkoutCustomerRepository) GetByPhone(ctx context.Context, shop, phone string) (*domain.CheckoutCustomer, error) {
	var c domain.CheckoutCustomer
	var name, email sql.NullString
	var addressesJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, shop, phone, name, email, addresses, expires_at, created_at, updated_at
		FROM checkout_customers WHERE shop = $1 AND phone = $2
	`, shop, phone).Scan(
		&c.ID, &c.Shop, &c.Phone, &name, &email, &addressesJSON, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "checkout_customer", ID: phone}
	}
	if err != nil {
		r.logger.Error("Failed to get checkout customer", zap.Error(err))
		return nil, err
	}
	c.Name = name.String
	c.Email = email.String
	if err := json.Unmarshal(addressesJSON, &c.Addresses); err != nil {
		return nil, err
	}
	return &c, nil
}

// Upsert writes the customer keyed by (shop, phone). The stored id wins on conflict.
func (r *checkoutCustomerRepository) Upsert(ctx context.Context, c *domain.CheckoutCustomer) error {
	now := time.Now()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	addresses := c.Addresses
	if addresses == nil {
		addresses = []domain.CustomerAddress{}
	}
	addressesJSON, err := json.Marshal(addresses)
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO checkout_customers (id, shop, phone, name, email, addresses, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (shop, phone) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			addresses = EXCLUDED.addresses,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`, c.ID, c.Shop, c.Phone, nullString(c.Name), nullString(c.Email), addressesJSON, c.ExpiresAt, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert checkout customer", zap.Error(err))
		return err
	}
	return nil
}

type returnRequestRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewReturnRequestRepository creates a new return request repository
func NewReturnRequestRepository(db dbtx, logger *zap.Logger) *returnRequestRepository {
	return &returnRequestRepository{db: db, logger: logger}
}

func (r *returnRequestRepository) Create(ctx context.Context, req *domain.ReturnRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	itemsJSON, err := json.Marshal(req.Items)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO return_requests (id, shop, order_id, order_name, phone, items, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, req.ID, req.Shop, req.OrderID, req.OrderName, nullString(req.Phone), itemsJSON,
		nullString(req.Reason), req.Status, req.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create return request", zap.Error(err))
		return err
	}
	return nil
}

func (r *returnRequestRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.ReturnRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, shop, order_id, order_name, phone, items, reason, status, created_at
		FROM return_requests WHERE order_id = $1 ORDER BY created_at
	`, orderID)
	if err != nil {
		r.logger.Error("Failed to list return requests", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ReturnRequest
	for rows.Next() {
		var req domain.ReturnRequest
		var phone, reason sql.NullString
		var itemsJSON []byte
		if err := rows.Scan(&req.ID, &req.Shop, &req.OrderID, &req.OrderName, &phone, &itemsJSON,
			&reason, &req.Status, &req.CreatedAt); err != nil {
			return nil, err
		}
		req.Phone = phone.String
		req.Reason = reason.String
		if err := json.Unmarshal(itemsJSON, &req.Items); err != nil {
			return nil, err
		}
		out = append(out, &req)
	}
	return out, rows.Err()
}
