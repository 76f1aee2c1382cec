package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/repository"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// NewRepositories creates a new set of repositories
func NewRepositories(db *sql.DB, logger *zap.Logger) *repository.Repositories {
	repos := newRepositories(db, logger)
	repos.Tx = &txRunner{db: db, logger: logger}
	return repos
}

func newRepositories(db dbtx, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		Business:         NewBusinessRepository(db, logger),
		Store:            NewStoreRepository(db, logger),
		ServiceKey:       NewServiceKeyRepository(db, logger),
		Order:            NewOrderRepository(db, logger),
		OrderStatusLog:   NewOrderStatusLogRepository(db, logger),
		ProcessedWebhook: NewProcessedWebhookRepository(db, logger),
		Product:          NewProductRepository(db, logger),
		Supplier:         NewSupplierRepository(db, logger),
		Warehouse:        NewWarehouseRepository(db, logger),
		PurchaseOrder:    NewPurchaseOrderRepository(db, logger),
		GRN:              NewGRNRepository(db, logger),
		UPC:              NewUPCRepository(db, logger),
		Counter:          NewCounterRepository(db, logger),
		CheckoutSession:  NewCheckoutSessionRepository(db, logger),
		CheckoutCustomer: NewCheckoutCustomerRepository(db, logger),
		ReturnRequest:    NewReturnRequestRepository(db, logger),
		WhatsAppTemplate: NewWhatsAppTemplateRepository(db, logger),
		IdempotencyKey:   NewIdempotencyKeyRepository(db, logger),
	}
}

type txRunner struct {
	db     *sql.DB
	logger *zap.Logger
}

func (r *txRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, repos *repository.Repositories) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txRepos := newRepositories(tx, r.logger)
	txRepos.Tx = nestedTx{repos: txRepos}

	if err := fn(ctx, txRepos); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// nestedTx joins the surrounding transaction
type nestedTx struct {
	repos *repository.Repositories
}

func (n nestedTx) WithinTx(ctx context.Context, fn func(ctx context.Context, repos *repository.Repositories) error) error {
	return fn(ctx, n.repos)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// nullJSON maps an empty document to SQL NULL
func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
