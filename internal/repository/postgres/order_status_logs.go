package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
)

type orderStatusLogRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewOrderStatusLogRepository creates a new order status log repository
func NewOrderStatusLogRepository(db dbtx, logger *zap.Logger) *orderStatusLogRepository {
	return &orderStatusLogRepository{
		db:     db,
		logger: logger,
	}
}

func (r *orderStatusLogRepository) Create(ctx context.Context, log *domain.OrderStatusLog) error {
	query := `
		INSERT INTO order_status_logs (id, order_id, status, previous_status, remarks, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.OrderID,
		log.Status,
		nullString(string(log.PreviousStatus)),
		nullString(log.Remarks),
		nullString(log.CreatedBy),
		log.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create order status log", zap.Error(err))
		return err
	}
	return nil
}

func (r *orderStatusLogRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderStatusLog, error) {
	query := `
		SELECT id, order_id, status, previous_status, remarks, created_by, created_at
		FROM order_status_logs
		WHERE order_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to get order status logs", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.OrderStatusLog
	for rows.Next() {
		var l domain.OrderStatusLog
		var previous, remarks, createdBy sql.NullString
		if err := rows.Scan(&l.ID, &l.OrderID, &l.Status, &previous, &remarks, &createdBy, &l.CreatedAt); err != nil {
			r.logger.Error("Failed to scan order status log", zap.Error(err))
			return nil, err
		}
		l.PreviousStatus = domain.CustomStatus(previous.String)
		l.Remarks = remarks.String
		l.CreatedBy = createdBy.String
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func (r *orderStatusLogRepository) DeleteByOrderID(ctx context.Context, orderID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM order_status_logs WHERE order_id = $1`, orderID); err != nil {
		r.logger.Error("Failed to delete order status logs", zap.Error(err))
		return err
	}
	return nil
}
