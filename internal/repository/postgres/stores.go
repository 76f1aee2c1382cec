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

type storeRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewStoreRepository creates a new store repository
func NewStoreRepository(db dbtx, logger *zap.Logger) *storeRepository {
	return &storeRepository{
		db:     db,
		logger: logger,
	}
}

const storeColumns = `shop, business_id, name, access_token, api_version, auto_capture, integrations, created_at, updated_at`

func (r *storeRepository) Create(ctx context.Context, store *domain.Store) error {
	query := `
		INSERT INTO stores (` + storeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now()
	if store.CreatedAt.IsZero() {
		store.CreatedAt = now
	}
	store.UpdatedAt = now

	integrationsJSON, err := json.Marshal(store.Integrations)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		store.Shop,
		store.BusinessID,
		nullString(store.Name),
		store.AccessToken,
		nullString(store.APIVersion),
		store.AutoCapture,
		integrationsJSON,
		store.CreatedAt,
		store.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &errors.ErrConflict{Message: "store already registered: " + store.Shop}
		}
		r.logger.Error("Failed to create store", zap.Error(err))
		return err
	}
	return nil
}

func (r *storeRepository) GetByShop(ctx context.Context, shop string) (*domain.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE shop = $1`

	s, err := scanStore(r.db.QueryRowContext(ctx, query, shop))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "store", ID: shop}
	}
	if err != nil {
		r.logger.Error("Failed to get store", zap.Error(err))
		return nil, err
	}
	return s, nil
}

func (r *storeRepository) Update(ctx context.Context, store *domain.Store) error {
	query := `
		UPDATE stores
		SET business_id = $2, name = $3, access_token = $4, api_version = $5,
			auto_capture = $6, integrations = $7, updated_at = $8
		WHERE shop = $1
	`

	store.UpdatedAt = time.Now()
	integrationsJSON, err := json.Marshal(store.Integrations)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query,
		store.Shop,
		store.BusinessID,
		nullString(store.Name),
		store.AccessToken,
		nullString(store.APIVersion),
		store.AutoCapture,
		integrationsJSON,
		store.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update store", zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrNotFound{Resource: "store", ID: store.Shop}
	}
	return nil
}

func (r *storeRepository) List(ctx context.Context) ([]*domain.Store, error) {
	return r.list(ctx, `SELECT `+storeColumns+` FROM stores ORDER BY shop`)
}

func (r *storeRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*domain.Store, error) {
	return r.list(ctx, `SELECT `+storeColumns+` FROM stores WHERE business_id = $1 ORDER BY shop`, businessID)
}

func (r *storeRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Store, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list stores", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var stores []*domain.Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}

func (r *storeRepository) UpsertMember(ctx context.Context, member *domain.StoreMember) error {
	query := `
		INSERT INTO store_members (shop, uid, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (shop, uid) DO UPDATE SET role = EXCLUDED.role
	`
	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, query, member.Shop, member.UID, member.Role, member.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert store member", zap.Error(err))
		return err
	}
	return nil
}

func (r *storeRepository) GetMember(ctx context.Context, shop, uid string) (*domain.StoreMember, error) {
	query := `SELECT shop, uid, role, created_at FROM store_members WHERE shop = $1 AND uid = $2`

	var m domain.StoreMember
	err := r.db.QueryRowContext(ctx, query, shop, uid).Scan(&m.Shop, &m.UID, &m.Role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "store_member", ID: uid}
	}
	if err != nil {
		r.logger.Error("Failed to get store member", zap.Error(err))
		return nil, err
	}
	return &m, nil
}

func scanStore(row rowScanner) (*domain.Store, error) {
	var s domain.Store
	var businessID uuid.NullUUID
	var name, apiVersion sql.NullString
	var integrationsJSON []byte

	if err := row.Scan(
		&s.Shop,
		&businessID,
		&name,
		&s.AccessToken,
		&apiVersion,
		&s.AutoCapture,
		&integrationsJSON,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if businessID.Valid {
		id := businessID.UUID
		s.BusinessID = &id
	}
	s.Name = name.String
	s.APIVersion = apiVersion.String
	if len(integrationsJSON) > 0 {
		if err := json.Unmarshal(integrationsJSON, &s.Integrations); err != nil {
			return nil, err
		}
	}
	return &s, nil
}
