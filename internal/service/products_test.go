package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type recordingUploader struct {
	names []string
}

func (u *recordingUploader) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	u.names = append(u.names, name)
	return "https://storage.googleapis.com/bucket/" + name, nil
}

func workbook(t *testing.T, rows [][]interface{}) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	for i, r := range rows {
		r := r
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellName, &r))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return bytes.NewReader(buf.Bytes())
}

var productHeader = []interface{}{"SKU", "Name", "Category", "Price", "Weight (g)"}

func TestCreateProductDuplicateSKU(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.svc.Products.Create(ctx, env.businessID, ProductRequest{SKU: " TS-M ", Name: "T-shirt", Price: decimal.NewFromInt(499)})
	require.NoError(t, err)
	assert.Equal(t, "TS-M", p.SKU)

	_, err = env.svc.Products.Create(ctx, env.businessID, ProductRequest{SKU: "TS-M", Name: "Again"})
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)

	_, err = env.svc.Products.Create(ctx, env.businessID, ProductRequest{SKU: "NEG", Name: "Neg", Price: decimal.NewFromInt(-1)})
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)
}

func TestProductLockedByOpenPurchaseOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := seedPurchasing(t, env)
	po, _, err := env.svc.Purchasing.CreatePurchaseOrder(ctx, env.businessID, ownerUID, f.poRequest(""), nil)
	require.NoError(t, err)

	product, err := env.repos.Product.GetBySKU(ctx, env.businessID, "TS-M")
	require.NoError(t, err)

	var conflict *errors.ErrConflict
	require.ErrorAs(t, env.svc.Products.Delete(ctx, env.businessID, product.ID), &conflict)
	_, err = env.svc.Products.Update(ctx, env.businessID, product.ID, ProductRequest{SKU: "TS-MED", Name: "T-shirt"})
	require.ErrorAs(t, err, &conflict)

	// renaming without touching the SKU is fine
	updated, err := env.svc.Products.Update(ctx, env.businessID, product.ID, ProductRequest{SKU: "TS-M", Name: "T-shirt Medium"})
	require.NoError(t, err)
	assert.Equal(t, "T-shirt Medium", updated.Name)

	_, err = env.svc.Purchasing.UpdatePOStatus(ctx, env.businessID, po.ID, ownerUID, POStatusRequest{Status: domain.POStatusCancelled})
	require.NoError(t, err)
	require.NoError(t, env.svc.Products.Delete(ctx, env.businessID, product.ID))
}

func TestProductRenameBlockedByInventory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "TS-M", 0)
	env.seedUnits(t, "TS-M", 1, domain.PutAwayInbound)

	_, err := env.svc.Products.Update(ctx, env.businessID, product.ID, ProductRequest{SKU: "TS-MED", Name: "T-shirt"})
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Message, "inventory units")

	other := env.seedProduct(t, "CAP", 0)
	renamed, err := env.svc.Products.Update(ctx, env.businessID, other.ID, ProductRequest{SKU: "CAP-RED", Name: "Red cap"})
	require.NoError(t, err)
	assert.Equal(t, "CAP-RED", renamed.SKU)
}

func TestMapVariant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shirt := env.seedProduct(t, "TS-M", 0)
	hat := env.seedProduct(t, "CAP", 0)

	got, err := env.svc.Products.MapVariant(ctx, env.businessID, shirt.ID, MapVariantRequest{Shop: "ACME.myshopify.com", VariantID: 42})
	require.NoError(t, err)
	assert.True(t, got.HasVariant(testShop, 42))

	// mapping the same variant again is a no-op
	_, err = env.svc.Products.MapVariant(ctx, env.businessID, shirt.ID, MapVariantRequest{Shop: testShop, VariantID: 42})
	require.NoError(t, err)

	_, err = env.svc.Products.MapVariant(ctx, env.businessID, hat.ID, MapVariantRequest{Shop: testShop, VariantID: 42})
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)

	moved, err := env.svc.Products.MapVariant(ctx, env.businessID, hat.ID, MapVariantRequest{Shop: testShop, VariantID: 42, Force: true})
	require.NoError(t, err)
	assert.True(t, moved.HasVariant(testShop, 42))

	owner, err := env.repos.Product.GetByMappedVariant(ctx, env.businessID, domain.VariantKey(testShop, 42))
	require.NoError(t, err)
	assert.Equal(t, "CAP", owner.SKU)
	old, err := env.svc.Products.Get(ctx, env.businessID, shirt.ID)
	require.NoError(t, err)
	assert.False(t, old.HasVariant(testShop, 42))

	_, err = env.svc.Products.UnmapVariant(ctx, env.businessID, hat.ID, testShop, 42)
	require.NoError(t, err)
	_, err = env.svc.Products.UnmapVariant(ctx, env.businessID, hat.ID, testShop, 42)
	var notFound *errors.ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestMapVariantForeignStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shirt := env.seedProduct(t, "TS-M", 0)
	require.NoError(t, env.repos.Store.Create(ctx, &domain.Store{Shop: "other.myshopify.com"}))

	_, err := env.svc.Products.MapVariant(ctx, env.businessID, shirt.ID, MapVariantRequest{Shop: "other.myshopify.com", VariantID: 7})
	var forbidden *errors.ErrForbidden
	require.ErrorAs(t, err, &forbidden)
}

func TestBulkUploadRejectsWholeFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "EXISTING", 0)
	uploader := &recordingUploader{}
	products := NewProductService(Deps{Repos: env.repos, Storage: uploader, Logger: zap.NewNop(), Now: env.clock.Now})

	file := workbook(t, [][]interface{}{
		productHeader,
		{"NEW-1", "New one", "Tees", "199", "200"},
		{"EXISTING", "Clash", "", "10", ""},
		{"NEW-1", "Dup", "", "1", ""},
		{"BAD", "Bad price", "", "abc", ""},
	})
	result, err := products.BulkUpload(ctx, env.businessID, UploadCreate, file)
	require.NoError(t, err)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Equal(t, "SKU already exists", result.Errors[0].Message)
	assert.Contains(t, result.Errors[1].Message, "first seen on row 2")
	assert.Equal(t, "price", result.Errors[2].Field)
	assert.Zero(t, result.Created)
	require.Len(t, uploader.names, 1)
	assert.Contains(t, uploader.names[0], "businesses/"+env.businessID.String()+"/product-uploads/")
	assert.NotEmpty(t, result.ResultURL)

	_, err = env.repos.Product.GetBySKU(ctx, env.businessID, "NEW-1")
	var notFound *errors.ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestBulkUploadUpsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "EXISTING", 0)

	file := workbook(t, [][]interface{}{
		productHeader,
		{"NEW-1", "New one", "Tees", "199", "200"},
		{"EXISTING", "", "Caps", "10", "50"},
	})
	result, err := env.svc.Products.BulkUpload(ctx, env.businessID, "", file)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, UploadUpsert, result.Mode)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)

	existing, err := env.repos.Product.GetBySKU(ctx, env.businessID, "EXISTING")
	require.NoError(t, err)
	assert.Equal(t, "EXISTING", existing.Name)
	assert.Equal(t, "Caps", existing.Category)
	assert.Equal(t, 50, existing.WeightGrams)

	created, err := env.repos.Product.GetBySKU(ctx, env.businessID, "NEW-1")
	require.NoError(t, err)
	assert.Equal(t, "199", created.Price.String())
}

func TestBulkUploadModes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Products.BulkUpload(ctx, env.businessID, "replace", workbook(t, [][]interface{}{productHeader}))
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)

	result, err := env.svc.Products.BulkUpload(ctx, env.businessID, UploadUpdate, workbook(t, [][]interface{}{
		productHeader,
		{"MISSING", "x", "", "1", ""},
	}))
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "SKU does not exist", result.Errors[0].Message)

	_, err = env.svc.Products.BulkUpload(ctx, env.businessID, UploadUpsert, bytes.NewReader([]byte("not a workbook")))
	require.ErrorAs(t, err, &validation)
}
