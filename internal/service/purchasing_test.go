package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type purchasingFixture struct {
	supplier  *domain.Supplier
	warehouse *domain.Warehouse
}

func seedPurchasing(t *testing.T, env *testEnv) purchasingFixture {
	t.Helper()
	ctx := context.Background()
	env.seedProduct(t, "TS-M", 0)
	env.seedProduct(t, "CAP", 0)
	supplier, err := env.svc.Purchasing.CreateSupplier(ctx, env.businessID, SupplierRequest{Name: "Loom Textiles"})
	require.NoError(t, err)
	warehouse, err := env.svc.Purchasing.CreateWarehouse(ctx, env.businessID, WarehouseRequest{Name: "Main", Code: "wh-1"})
	require.NoError(t, err)
	return purchasingFixture{supplier: supplier, warehouse: warehouse}
}

func (f purchasingFixture) poRequest(status domain.POStatus) CreatePORequest {
	return CreatePORequest{
		SupplierID:  f.supplier.ID,
		WarehouseID: f.warehouse.ID,
		Status:      status,
		Items: []POItemRequest{
			{SKU: "TS-M", OrderedQty: 10, UnitCost: decimal.NewFromInt(120)},
			{SKU: "CAP", OrderedQty: 5, UnitCost: decimal.RequireFromString("49.50")},
		},
	}
}

func TestCreateWarehouseCodeUnique(t *testing.T) {
	env := newTestEnv(t)
	f := seedPurchasing(t, env)
	assert.Equal(t, "WH-1", f.warehouse.Code)

	_, err := env.svc.Purchasing.CreateWarehouse(context.Background(), env.businessID, WarehouseRequest{Name: "Other", Code: "WH-1"})
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)
}

func TestCreatePurchaseOrderNumbering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := seedPurchasing(t, env)

	first, replayed, err := env.svc.Purchasing.CreatePurchaseOrder(ctx, env.businessID, ownerUID, f.poRequest(""), nil)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, "PO-00001", first.Number)
	assert.Equal(t, domain.POStatusDraft, first.Status)
	assert.Equal(t, "1447.50", first.TotalAmount.StringFixed(2))
	require.Len(t, first.StatusLogs, 1)

	second, _, err := env.svc.Purchasing.CreatePurchaseOrder(ctx, env.businessID, ownerUID, f.poRequest(domain.POStatusConfirmed), nil)
	require.NoError(t, err)
	assert.Equal(t, "PO-00002", second.Number)
	assert.Equal(t, domain.POStatusConfirmed, second.Status)
}

func TestCreatePurchaseOrderValidatesItems(t *testing.T) {
	env := newTestEnv(t)
	f := seedPurchasing(t, env)
	req := f.poRequest("")
	req.Items = []POItemRequest{
		{SKU: "TS-M", OrderedQty: 1},
		{SKU: "TS-M", OrderedQty: 2},
		{SKU: "NOPE", OrderedQty: 1},
		{SKU: "CAP", OrderedQty: 1, UnitCost: decimal.NewFromInt(-1)},
	}

	_, _, err := env.svc.Purchasing.CreatePurchaseOrder(context.Background(), env.businessID, ownerUID, req, nil)
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields["items[1].sku"], "duplicate")
	assert.Contains(t, validation.Fields["items[2].sku"], "unknown SKU")
	assert.Contains(t, validation.Fields, "items[3].unitCost")

	// a rejected request must not consume a number
	po, _, err := env.svc.Purchasing.CreatePurchaseOrder(context.Background(), env.businessID, ownerUID, f.poRequest(""), nil)
	require.NoError(t, err)
	assert.Equal(t, "PO-00001", po.Number)
}

func TestCreatePurchaseOrderUnknownSupplier(t *testing.T) {
	env := newTestEnv(t)
	f := seedPurchasing(t, env)
	req := f.poRequest("")
	req.SupplierID = uuid.New()

	_, _, err := env.svc.Purchasing.CreatePurchaseOrder(context.Background(), env.businessID, ownerUID, req, nil)
	var notFound *errors.ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestCreatePurchaseOrderIdempotency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := seedPurchasing(t, env)
	idem := &Idempotency{Key: "k-1", Scope: "/purchase-orders", RequestHash: "hash-a"}

	first, replayed, err := env.svc.Purchasing.CreatePurchaseOrder(ctx, env.businessID, ownerUID, f.poRequest(""), idem)
	require.NoError(t, err)
	assert.False(t, replayed)

	again, replayed, err := env.svc.Purchasing.CreatePurchaseOrder(ctx, env.businessID, ownerUID, f.poRequest(""), idem)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, again.ID)

	pos, err := env.svc.Purchasing.ListPurchaseOrders(ctx, env.businessID, "")
	require.NoError(t, err)
	assert.Len(t, pos, 1)

	other := &Idempotency{Key: "k-1", Scope: "/purchase-orders", RequestHash: "hash-b"}
	_, _, err = env.svc.Purchasing.CreatePurchaseOrder(ctx, env.businessID, ownerUID, f.poRequest(""), other)
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)
}

func TestUpdatePurchaseOrderOnlyDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := seedPurchasing(t, env)
	po, _, err := env.svc.Purchasing.CreatePurchaseOrder(ctx, env.businessID, ownerUID, f.poRequest(""), nil)
	require.NoError(t, err)

	notes := "rush"
	updated, err := env.svc.Purchasing.UpdatePurchaseOrder(ctx, env.businessID, po.ID, UpdatePORequest{
		Notes: &notes,
		Items: []POItemRequest{{SKU: "CAP", OrderedQty: 2, UnitCost: decimal.NewFromInt(50)}},
	})
	require.NoError(t, err)
	assert.Equal(t, "rush", updated.Notes)
	assert.Equal(t, "100.00", updated.TotalAmount.StringFixed(2))

	_, err = env.svc.Purchasing.UpdatePOStatus(ctx, env.businessID, po.ID, ownerUID, POStatusRequest{Status: domain.POStatusConfirmed})
	require.NoError(t, err)

	_, err = env.svc.Purchasing.UpdatePurchaseOrder(ctx, env.businessID, po.ID, UpdatePORequest{Notes: &notes})
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)
}

func TestUpdatePOStatusRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := seedPurchasing(t, env)
	po, _, err := env.svc.Purchasing.CreatePurchaseOrder(ctx, env.businessID, ownerUID, f.poRequest(""), nil)
	require.NoError(t, err)

	_, err = env.svc.Purchasing.UpdatePOStatus(ctx, env.businessID, po.ID, ownerUID, POStatusRequest{Status: domain.POStatusFullyReceived})
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)

	_, err = env.svc.Purchasing.UpdatePOStatus(ctx, env.businessID, po.ID, ownerUID, POStatusRequest{Status: domain.POStatusClosed})
	var transition *errors.ErrInvalidStateTransition
	require.ErrorAs(t, err, &transition)

	cancelled, err := env.svc.Purchasing.UpdatePOStatus(ctx, env.businessID, po.ID, ownerUID, POStatusRequest{Status: domain.POStatusCancelled, Remarks: "supplier out"})
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusCancelled, cancelled.Status)
	assert.Len(t, cancelled.StatusLogs, 2)
}

func TestGRNPartialThenFullReceipt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := seedPurchasing(t, env)
	po, _, err := env.svc.Purchasing.CreatePurchaseOrder(ctx, env.businessID, ownerUID, f.poRequest(domain.POStatusConfirmed), nil)
	require.NoError(t, err)

	grn, _, err := env.svc.Purchasing.CreateGRN(ctx, env.businessID, ownerUID, CreateGRNRequest{
		PurchaseOrderID: po.ID,
		Items:           []GRNItemRequest{{SKU: "TS-M", ReceivedQty: 7, AcceptedQty: 6, RejectedQty: 1}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "GRN-00001", grn.Number)
	assert.Equal(t, po.Number, grn.PONumber)

	got, err := env.svc.Purchasing.GetPurchaseOrder(ctx, env.businessID, po.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusPartiallyReceived, got.Status)
	item, ok := got.Item("TS-M")
	require.True(t, ok)
	assert.Equal(t, 6, item.ReceivedQty)
	assert.Equal(t, 1, item.RejectedQty)
	assert.Equal(t, domain.POItemPartiallyReceived, item.Status)
	assert.Equal(t, 6, env.countUnits(t, "TS-M", domain.PutAwayNone))

	_, _, err = env.svc.Purchasing.CreateGRN(ctx, env.businessID, ownerUID, CreateGRNRequest{
		PurchaseOrderID: po.ID,
		Items: []GRNItemRequest{
			{SKU: "TS-M", ReceivedQty: 4, AcceptedQty: 4},
			{SKU: "CAP", ReceivedQty: 5, AcceptedQty: 5},
		},
	}, nil)
	require.NoError(t, err)

	got, err = env.svc.Purchasing.GetPurchaseOrder(ctx, env.businessID, po.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusFullyReceived, got.Status)
	assert.Equal(t, 10, env.countUnits(t, "TS-M", domain.PutAwayNone))
	assert.Equal(t, 5, env.countUnits(t, "CAP", domain.PutAwayNone))

	grns, err := env.svc.Purchasing.ListGRNs(ctx, env.businessID, po.ID)
	require.NoError(t, err)
	assert.Len(t, grns, 2)

	// fully received orders accept no further receipts
	_, _, err = env.svc.Purchasing.CreateGRN(ctx, env.businessID, ownerUID, CreateGRNRequest{
		PurchaseOrderID: po.ID,
		Items:           []GRNItemRequest{{SKU: "CAP", ReceivedQty: 1, AcceptedQty: 0, RejectedQty: 1}},
	}, nil)
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)
}

func TestGRNValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := seedPurchasing(t, env)
	po, _, err := env.svc.Purchasing.CreatePurchaseOrder(ctx, env.businessID, ownerUID, f.poRequest(domain.POStatusConfirmed), nil)
	require.NoError(t, err)

	_, _, err = env.svc.Purchasing.CreateGRN(ctx, env.businessID, ownerUID, CreateGRNRequest{
		PurchaseOrderID: po.ID,
		Items: []GRNItemRequest{
			{SKU: "TS-M", ReceivedQty: 11, AcceptedQty: 11},
			{SKU: "CAP", ReceivedQty: 2, AcceptedQty: 2, RejectedQty: 1},
			{SKU: "HAT", ReceivedQty: 1, AcceptedQty: 1},
			{SKU: "TS-M", ReceivedQty: 1, AcceptedQty: 1},
		},
	}, nil)
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields["items[0].acceptedQty"], "over-receipt")
	assert.Contains(t, validation.Fields["items[1]"], "exceeds received")
	assert.Contains(t, validation.Fields["items[2].sku"], "not on purchase order")
	assert.Contains(t, validation.Fields["items[3].sku"], "duplicate")

	units, err := env.repos.UPC.List(ctx, env.businessID, repository.UPCFilter{})
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestGRNRequiresConfirmedPO(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := seedPurchasing(t, env)
	po, _, err := env.svc.Purchasing.CreatePurchaseOrder(ctx, env.businessID, ownerUID, f.poRequest(""), nil)
	require.NoError(t, err)

	_, _, err = env.svc.Purchasing.CreateGRN(ctx, env.businessID, ownerUID, CreateGRNRequest{
		PurchaseOrderID: po.ID,
		Items:           []GRNItemRequest{{SKU: "TS-M", ReceivedQty: 1, AcceptedQty: 1}},
	}, nil)
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)
}

func TestGRNIdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := seedPurchasing(t, env)
	po, _, err := env.svc.Purchasing.CreatePurchaseOrder(ctx, env.businessID, ownerUID, f.poRequest(domain.POStatusConfirmed), nil)
	require.NoError(t, err)

	req := CreateGRNRequest{PurchaseOrderID: po.ID, Items: []GRNItemRequest{{SKU: "CAP", ReceivedQty: 2, AcceptedQty: 2}}}
	idem := &Idempotency{Key: "grn-1", Scope: "/grns", RequestHash: "h"}
	first, _, err := env.svc.Purchasing.CreateGRN(ctx, env.businessID, ownerUID, req, idem)
	require.NoError(t, err)
	second, replayed, err := env.svc.Purchasing.CreateGRN(ctx, env.businessID, ownerUID, req, idem)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, env.countUnits(t, "CAP", domain.PutAwayNone))
}

func TestPurchaseOrderDocuments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := seedPurchasing(t, env)
	po, _, err := env.svc.Purchasing.CreatePurchaseOrder(ctx, env.businessID, ownerUID, f.poRequest(""), nil)
	require.NoError(t, err)

	business, err := env.repos.Business.GetByID(ctx, env.businessID)
	require.NoError(t, err)
	_, pdf, err := env.svc.Purchasing.PurchaseOrderPDF(ctx, business, po.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))

	xlsx, err := env.svc.Purchasing.ExportPurchaseOrders(ctx, env.businessID, "")
	require.NoError(t, err)
	assert.Equal(t, "PK", string(xlsx[:2]))

	_, err = env.svc.Purchasing.ExportPurchaseOrders(ctx, env.businessID, "shipped")
	var validation *errors.ErrValidation
	assert.ErrorAs(t, err, &validation)
}
