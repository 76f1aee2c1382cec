package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/events"
	"github.com/jafarshop/opsapi/pkg/errors"
)

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t, 1001, domain.StatusNew)

	_, err := env.svc.Orders.UpdateStatus(context.Background(), env.store, ownerUID, order.ID, domain.StatusDelivered, "")
	var transition *errors.ErrInvalidStateTransition
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, "New", transition.From)
	assert.Empty(t, env.published.events)
}

func TestConfirmIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, 1001, domain.StatusNew)

	got, err := env.svc.Orders.Confirm(ctx, env.store, ownerUID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.CustomStatus)

	_, err = env.svc.Orders.Confirm(ctx, env.store, ownerUID, order.ID)
	require.NoError(t, err)

	detail, err := env.svc.Orders.Get(ctx, testShop, order.ID)
	require.NoError(t, err)
	require.Len(t, detail.Logs, 1)
	assert.Equal(t, domain.StatusNew, detail.Logs[0].PreviousStatus)
	assert.Equal(t, ownerUID, detail.Logs[0].CreatedBy)
	assert.Equal(t, []string{events.OrderStatusChanged}, env.published.types())
}

func TestBulkUpdateStatusReportsPerOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	newOrder := env.seedOrder(t, 1001, domain.StatusNew)
	confirmed := env.seedOrder(t, 1002, domain.StatusConfirmed)
	delivered := env.seedOrder(t, 1003, domain.StatusDelivered)
	missing := uuid.New()

	results, err := env.svc.Orders.BulkUpdateStatus(ctx, env.store, ownerUID, BulkStatusRequest{
		OrderIDs: []uuid.UUID{newOrder.ID, confirmed.ID, delivered.ID, missing, newOrder.ID},
		Status:   domain.StatusConfirmed,
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.True(t, results[0].OK)
	assert.Equal(t, domain.StatusConfirmed, results[0].Status)
	assert.True(t, results[1].OK)
	assert.False(t, results[2].OK)
	assert.Contains(t, results[2].Error, "Delivered")
	assert.False(t, results[3].OK)
	assert.Contains(t, results[3].Error, "not found")

	// only the order that actually moved produces an event
	assert.Equal(t, []string{events.OrderStatusChanged}, env.published.types())
}

func TestBulkUpdateStatusUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Orders.BulkUpdateStatus(context.Background(), env.store, ownerUID, BulkStatusRequest{
		OrderIDs: []uuid.UUID{uuid.New()},
		Status:   "Shipped",
	})
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)
}

func TestPickupReadyReservesAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "TS-M", 42)
	env.seedProduct(t, "CAP", 43)
	order := env.seedOrder(t, 1001, domain.StatusConfirmed,
		domain.OrderLineItem{ShopifyLineItemID: 1, VariantID: 42, Title: "T-shirt", Quantity: 2},
		domain.OrderLineItem{ShopifyLineItemID: 2, VariantID: 43, Title: "Cap", Quantity: 1},
	)
	env.seedUnits(t, "TS-M", 3, domain.PutAwayInbound)

	_, err := env.svc.Orders.SetPickupReady(ctx, env.store, ownerUID, order.ID, true)
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields, "CAP")
	assert.Equal(t, 3, env.countUnits(t, "TS-M", domain.PutAwayInbound))

	env.seedUnits(t, "CAP", 1, domain.PutAwayInbound)
	got, err := env.svc.Orders.SetPickupReady(ctx, env.store, ownerUID, order.ID, true)
	require.NoError(t, err)
	assert.True(t, got.PickupReady)
	assert.Equal(t, 1, env.countUnits(t, "TS-M", domain.PutAwayInbound))
	assert.Equal(t, 2, env.countUnits(t, "TS-M", domain.PutAwayOutbound))
	assert.Equal(t, 1, env.countUnits(t, "CAP", domain.PutAwayOutbound))

	got, err = env.svc.Orders.SetPickupReady(ctx, env.store, ownerUID, order.ID, false)
	require.NoError(t, err)
	assert.False(t, got.PickupReady)
	assert.Equal(t, 3, env.countUnits(t, "TS-M", domain.PutAwayInbound))
	assert.Equal(t, 1, env.countUnits(t, "CAP", domain.PutAwayInbound))
}

func TestPickupReadyUnmappedVariant(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t, 1001, domain.StatusConfirmed)

	_, err := env.svc.Orders.SetPickupReady(context.Background(), env.store, ownerUID, order.ID, true)
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields, "variant 42")
}

func TestDispatchMovesUnitsAndFulfills(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "TS-M", 42)
	env.seedUnits(t, "TS-M", 2, domain.PutAwayInbound)
	env.template(t, "shipped", domain.EventOrderDispatched, "awb", "tracking_url")
	order := env.seedOrder(t, 1001, domain.StatusConfirmed)

	_, err := env.svc.Orders.SetPickupReady(ctx, env.store, ownerUID, order.ID, true)
	require.NoError(t, err)

	stored, err := env.repos.Order.GetByID(ctx, testShop, order.ID)
	require.NoError(t, err)
	stored.CustomStatus = domain.StatusReadyToDispatch
	stored.AWB = "AWB123"
	stored.Courier = domain.CourierDelhivery
	require.NoError(t, env.repos.Order.Update(ctx, stored))

	got, err := env.svc.Orders.UpdateStatus(ctx, env.store, ownerUID, order.ID, domain.StatusDispatched, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDispatched, got.CustomStatus)
	assert.Equal(t, 2, env.countUnits(t, "TS-M", domain.PutAwayDispatched))

	require.Len(t, env.admin.fulfilled, 1)
	assert.Equal(t, "AWB123", env.admin.fulfilled[0].Number)
	assert.Equal(t, "https://www.delhivery.com/track/package/AWB123", env.admin.fulfilled[0].URL)
	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, "AWB123", env.sender.sent[0].BodyValues[0])
}

func TestDeliveredSetsTimestampAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	env.template(t, "delivered", domain.EventOrderDelivered, "order_name")
	order := env.seedOrder(t, 1001, domain.StatusOutForDelivery)

	got, err := env.svc.Orders.UpdateStatus(context.Background(), env.store, ownerUID, order.ID, domain.StatusDelivered, "")
	require.NoError(t, err)
	require.NotNil(t, got.DeliveredAt)
	assert.Equal(t, env.clock.Now(), *got.DeliveredAt)
	assert.Equal(t, []string{"delivered"}, env.sender.templates())
	assert.Empty(t, env.admin.fulfilled)
}

func TestCancelOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "TS-M", 42)
	env.seedUnits(t, "TS-M", 2, domain.PutAwayInbound)
	order := env.seedOrder(t, 1001, domain.StatusConfirmed)
	_, err := env.svc.Orders.SetPickupReady(ctx, env.store, ownerUID, order.ID, true)
	require.NoError(t, err)

	got, err := env.svc.Orders.Cancel(ctx, env.store, ownerUID, order.ID, CancelOrderRequest{Reason: "customer"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.CustomStatus)
	assert.False(t, got.PickupReady)
	assert.Equal(t, []int64{1001}, env.admin.cancelled)
	assert.Equal(t, 2, env.countUnits(t, "TS-M", domain.PutAwayInbound))

	// cancelling again does not call Shopify a second time
	_, err = env.svc.Orders.Cancel(ctx, env.store, ownerUID, order.ID, CancelOrderRequest{})
	require.NoError(t, err)
	assert.Len(t, env.admin.cancelled, 1)
}

func TestCancelOrderWithAWBConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, 1001, domain.StatusReadyToDispatch)
	order.AWB = "AWB1"
	require.NoError(t, env.repos.Order.Update(ctx, order))

	_, err := env.svc.Orders.Cancel(ctx, env.store, ownerUID, order.ID, CancelOrderRequest{})
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)
	assert.Empty(t, env.admin.cancelled)
}

func TestCancelOrderUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.admin.cancelErr = assert.AnError
	order := env.seedOrder(t, 1001, domain.StatusNew)

	_, err := env.svc.Orders.Cancel(context.Background(), env.store, ownerUID, order.ID, CancelOrderRequest{})
	var upstream *errors.ErrUpstream
	require.ErrorAs(t, err, &upstream)

	got, err := env.repos.Order.GetByID(context.Background(), testShop, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, got.CustomStatus)
}

func TestShippingSlips(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedOrder(t, 1001, domain.StatusConfirmed)
	b := env.seedOrder(t, 1002, domain.StatusConfirmed)

	pdf, err := env.svc.Orders.ShippingSlips(context.Background(), env.store, []uuid.UUID{a.ID, b.ID, a.ID})
	require.NoError(t, err)
	assert.True(t, len(pdf) > 4)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}
