package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/config"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/pkg/errors"
)

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// openTestDB connects to the database named by DB_* and applies migrations.
// Tests are skipped when DB_HOST is unset.
func openTestDB(t *testing.T) (*sql.DB, *repository.Repositories) {
	t.Helper()
	if os.Getenv("DB_HOST") == "" {
		t.Skip("DB_HOST not set; skipping postgres integration tests")
	}

	db, err := NewConnection(config.DatabaseConfig{
		Host:     os.Getenv("DB_HOST"),
		Port:     envOr("DB_PORT", "5432"),
		User:     envOr("DB_USER", "postgres"),
		Password: envOr("DB_PASSWORD", "postgres"),
		DBName:   envOr("DB_NAME", "opsapi"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	_, err = RunMigrations(ctx, db, "../../../migrations")
	require.NoError(t, err)
	// schema statements are re-runnable
	_, err = RunMigrations(ctx, db, "../../../migrations")
	require.NoError(t, err)

	return db, NewRepositories(db, zap.NewNop())
}

func createTestBusiness(t *testing.T, repos *repository.Repositories) *domain.Business {
	t.Helper()
	business := &domain.Business{Name: "Test " + uuid.NewString()[:8], OwnerUID: "uid-" + uuid.NewString()}
	require.NoError(t, repos.Business.Create(context.Background(), business))
	require.NotEqual(t, uuid.Nil, business.ID)
	return business
}

func TestCounterNext(t *testing.T) {
	_, repos := openTestDB(t)
	ctx := context.Background()
	business := createTestBusiness(t, repos)

	n, err := repos.Counter.Next(ctx, business.ID, "po")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = repos.Counter.Next(ctx, business.ID, "po")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// a failed transaction gives its number back
	boom := stderrors.New("boom")
	err = repos.Tx.WithinTx(ctx, func(ctx context.Context, tx *repository.Repositories) error {
		n, err := tx.Counter.Next(ctx, business.ID, "po")
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err = repos.Counter.Next(ctx, business.ID, "po")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// counters are independent per name
	n, err = repos.Counter.Next(ctx, business.ID, "grn")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestProductCreateAndUpsert(t *testing.T) {
	_, repos := openTestDB(t)
	ctx := context.Background()
	business := createTestBusiness(t, repos)

	product := &domain.Product{BusinessID: business.ID, SKU: "TS-M", Name: "T-Shirt M", Price: decimal.NewFromInt(15), WeightGrams: 200}
	require.NoError(t, repos.Product.Create(ctx, product))

	dup := &domain.Product{BusinessID: business.ID, SKU: "TS-M", Name: "Duplicate", Price: decimal.NewFromInt(1)}
	err := repos.Product.Create(ctx, dup)
	var conflict *errors.ErrConflict
	require.True(t, stderrors.As(err, &conflict), "got %v", err)

	_, err = repos.Product.GetBySKU(ctx, business.ID, "NOPE")
	var notFound *errors.ErrNotFound
	assert.True(t, stderrors.As(err, &notFound), "got %v", err)

	err = repos.Product.UpsertBatch(ctx, []*domain.Product{
		{BusinessID: business.ID, SKU: "TS-M", Name: "T-Shirt Medium", Price: decimal.NewFromInt(18), WeightGrams: 210},
		{BusinessID: business.ID, SKU: "CAP", Name: "Cap", Price: decimal.NewFromInt(9), WeightGrams: 80},
	})
	require.NoError(t, err)

	got, err := repos.Product.GetBySKU(ctx, business.ID, "TS-M")
	require.NoError(t, err)
	assert.Equal(t, product.ID, got.ID)
	assert.Equal(t, "T-Shirt Medium", got.Name)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(18)))
	assert.Equal(t, 210, got.WeightGrams)

	list, err := repos.Product.List(ctx, business.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestPurchaseOrderRowLock(t *testing.T) {
	_, repos := openTestDB(t)
	ctx := context.Background()
	business := createTestBusiness(t, repos)

	supplier := &domain.Supplier{BusinessID: business.ID, Name: "Acme Textiles"}
	require.NoError(t, repos.Supplier.Create(ctx, supplier))
	warehouse := &domain.Warehouse{BusinessID: business.ID, Name: "Main", Code: "MAIN"}
	require.NoError(t, repos.Warehouse.Create(ctx, warehouse))

	po := &domain.PurchaseOrder{
		BusinessID:  business.ID,
		Number:      "PO-" + uuid.NewString()[:8],
		SupplierID:  supplier.ID,
		WarehouseID: warehouse.ID,
		Status:      domain.POStatusDraft,
		Items: []domain.PurchaseOrderItem{
			{SKU: "TS-M", ProductName: "T-Shirt M", OrderedQty: 5, UnitCost: decimal.NewFromInt(4)},
		},
		TotalAmount: decimal.NewFromInt(20),
		CreatedBy:   "uid-1",
	}
	require.NoError(t, repos.PurchaseOrder.Create(ctx, po))

	locked := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- repos.Tx.WithinTx(ctx, func(ctx context.Context, tx *repository.Repositories) error {
			current, err := tx.PurchaseOrder.GetByID(ctx, business.ID, po.ID)
			if err != nil {
				close(locked)
				return err
			}
			close(locked)
			time.Sleep(200 * time.Millisecond)
			current.Notes = "first"
			return tx.PurchaseOrder.Update(ctx, current)
		})
	}()

	<-locked
	var seen string
	err := repos.Tx.WithinTx(ctx, func(ctx context.Context, tx *repository.Repositories) error {
		// blocks until the first transaction commits
		current, err := tx.PurchaseOrder.GetByID(ctx, business.ID, po.ID)
		if err != nil {
			return err
		}
		seen = current.Notes
		current.Notes += "+second"
		return tx.PurchaseOrder.Update(ctx, current)
	})
	require.NoError(t, err)
	require.NoError(t, <-firstDone)
	assert.Equal(t, "first", seen)

	got, err := repos.PurchaseOrder.GetByID(ctx, business.ID, po.ID)
	require.NoError(t, err)
	assert.Equal(t, "first+second", got.Notes)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 5, got.Items[0].OrderedQty)
}
