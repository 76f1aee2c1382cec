package postgres

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
)

type idempotencyKeyRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewIdempotencyKeyRepository creates a new idempotency key repository
func NewIdempotencyKeyRepository(db dbtx, logger *zap.Logger) *idempotencyKeyRepository {
	return &idempotencyKeyRepository{
		db:     db,
		logger: logger,
	}
}

// GetByKey returns nil, nil when the key has not been used on scope
func (r *idempotencyKeyRepository) GetByKey(ctx context.Context, scope, key string) (*domain.IdempotencyKey, error) {
	query := `
		SELECT key, scope, resource_type, resource_id, request_hash, created_at
		FROM idempotency_keys
		WHERE scope = $1 AND key = $2
	`

	var k domain.IdempotencyKey
	err := r.db.QueryRowContext(ctx, query, scope, key).Scan(
		&k.Key,
		&k.Scope,
		&k.ResourceType,
		&k.ResourceID,
		&k.RequestHash,
		&k.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get idempotency key", zap.Error(err))
		return nil, err
	}
	return &k, nil
}

func (r *idempotencyKeyRepository) Create(ctx context.Context, key *domain.IdempotencyKey) error {
	query := `
		INSERT INTO idempotency_keys (key, scope, resource_type, resource_id, request_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (scope, key) DO NOTHING
	`

	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		key.Key,
		key.Scope,
		key.ResourceType,
		key.ResourceID,
		key.RequestHash,
		key.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create idempotency key", zap.Error(err))
		return err
	}
	return nil
}

type processedWebhookRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewProcessedWebhookRepository creates a repository of handled Shopify webhook deliveries
func NewProcessedWebhookRepository(db dbtx, logger *zap.Logger) *processedWebhookRepository {
	return &processedWebhookRepository{
		db:     db,
		logger: logger,
	}
}

func (r *processedWebhookRepository) Exists(ctx context.Context, webhookID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM processed_webhooks WHERE webhook_id = $1)`, webhookID,
	).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check processed webhook", zap.Error(err))
		return false, err
	}
	return exists, nil
}

func (r *processedWebhookRepository) Create(ctx context.Context, webhookID, shop, topic string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_webhooks (webhook_id, shop, topic, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (webhook_id) DO NOTHING
	`, webhookID, shop, topic, time.Now())
	if err != nil {
		r.logger.Error("Failed to record processed webhook", zap.Error(err))
		return err
	}
	return nil
}
