package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type serviceKeyRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewServiceKeyRepository creates a new service key repository
func NewServiceKeyRepository(db dbtx, logger *zap.Logger) *serviceKeyRepository {
	return &serviceKeyRepository{
		db:     db,
		logger: logger,
	}
}

func (r *serviceKeyRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.ServiceKey, error) {
	query := `
		SELECT id, name, key_hash, key_lookup, is_active, created_at
		FROM service_keys
		WHERE is_active = true AND key_lookup = $1
	`

	var key domain.ServiceKey
	var lookup sql.NullString
	err := r.db.QueryRowContext(ctx, query, domain.APIKeyLookupHash(apiKey)).Scan(
		&key.ID,
		&key.Name,
		&key.KeyHash,
		&lookup,
		&key.IsActive,
		&key.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrUnauthorized{Message: "invalid API key"}
	}
	if err != nil {
		r.logger.Error("Failed to look up service key", zap.Error(err))
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(apiKey)) != nil {
		r.logger.Info("Service key lookup matched but bcrypt verification failed", zap.String("key_id", key.ID.String()))
		return nil, &errors.ErrUnauthorized{Message: "invalid API key"}
	}
	key.KeyLookup = lookup.String
	return &key, nil
}

func (r *serviceKeyRepository) Create(ctx context.Context, key *domain.ServiceKey) error {
	query := `
		INSERT INTO service_keys (id, name, key_hash, key_lookup, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		key.ID,
		key.Name,
		key.KeyHash,
		nullString(key.KeyLookup),
		key.IsActive,
		key.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create service key", zap.Error(err))
		return err
	}
	return nil
}
