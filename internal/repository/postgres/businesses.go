package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type businessRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewBusinessRepository creates a new business repository
func NewBusinessRepository(db dbtx, logger *zap.Logger) *businessRepository {
	return &businessRepository{
		db:     db,
		logger: logger,
	}
}

func (r *businessRepository) Create(ctx context.Context, business *domain.Business) error {
	query := `
		INSERT INTO businesses (id, name, owner_uid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	now := time.Now()
	if business.ID == uuid.Nil {
		business.ID = uuid.New()
	}
	if business.CreatedAt.IsZero() {
		business.CreatedAt = now
	}
	business.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		business.ID,
		business.Name,
		business.OwnerUID,
		business.CreatedAt,
		business.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create business", zap.Error(err))
		return err
	}
	return nil
}

func (r *businessRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error) {
	query := `
		SELECT id, name, owner_uid, created_at, updated_at
		FROM businesses
		WHERE id = $1
	`

	var b domain.Business
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID,
		&b.Name,
		&b.OwnerUID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "business", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get business", zap.Error(err))
		return nil, err
	}
	return &b, nil
}

func (r *businessRepository) UpsertMember(ctx context.Context, member *domain.BusinessMember) error {
	query := `
		INSERT INTO business_members (business_id, uid, email, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (business_id, uid) DO UPDATE SET
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active
	`

	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		member.BusinessID,
		member.UID,
		nullString(member.Email),
		member.Role,
		member.IsActive,
		member.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert business member", zap.Error(err))
		return err
	}
	return nil
}

func (r *businessRepository) GetMember(ctx context.Context, businessID uuid.UUID, uid string) (*domain.BusinessMember, error) {
	query := `
		SELECT business_id, uid, email, role, is_active, created_at
		FROM business_members
		WHERE business_id = $1 AND uid = $2
	`

	m, err := scanBusinessMember(r.db.QueryRowContext(ctx, query, businessID, uid))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "business_member", ID: uid}
	}
	if err != nil {
		r.logger.Error("Failed to get business member", zap.Error(err))
		return nil, err
	}
	return m, nil
}

func (r *businessRepository) ListMembers(ctx context.Context, businessID uuid.UUID) ([]*domain.BusinessMember, error) {
	query := `
		SELECT business_id, uid, email, role, is_active, created_at
		FROM business_members
		WHERE business_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, businessID)
	if err != nil {
		r.logger.Error("Failed to list business members", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var members []*domain.BusinessMember
	for rows.Next() {
		m, err := scanBusinessMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *businessRepository) RemoveMember(ctx context.Context, businessID uuid.UUID, uid string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM business_members WHERE business_id = $1 AND uid = $2`, businessID, uid)
	if err != nil {
		r.logger.Error("Failed to remove business member", zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrNotFound{Resource: "business_member", ID: uid}
	}
	return nil
}

func scanBusinessMember(row rowScanner) (*domain.BusinessMember, error) {
	var m domain.BusinessMember
	var email sql.NullString
	if err := row.Scan(&m.BusinessID, &m.UID, &email, &m.Role, &m.IsActive, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Email = email.String
	return &m, nil
}
