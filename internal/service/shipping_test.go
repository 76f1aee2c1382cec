package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/opsapi/internal/courier"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/pkg/errors"
)

func TestAssignAWBs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "TS-M", 42)
	confirmed := env.seedOrder(t, 1001, domain.StatusConfirmed)
	fresh := env.seedOrder(t, 1002, domain.StatusNew)

	results, err := env.svc.Shipping.AssignAWBs(ctx, env.store, ownerUID, AssignAWBRequest{
		OrderIDs: []uuid.UUID{confirmed.ID, fresh.ID, uuid.New()},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK)
	assert.Equal(t, "AWB001", results[0].AWB)
	assert.Equal(t, domain.StatusReadyToDispatch, results[0].Status)
	assert.False(t, results[1].OK)
	assert.Contains(t, results[1].Error, "only Confirmed")
	assert.Equal(t, domain.StatusNew, results[1].Status)
	assert.False(t, results[2].OK)

	require.Len(t, env.courier.booked, 1)
	shipment := env.courier.booked[0]
	assert.Equal(t, 500, shipment.WeightGrams)
	assert.Equal(t, "Main WH", shipment.PickupLocation)
	assert.Equal(t, "411001", shipment.Consignee.Pincode)

	got, err := env.repos.Order.GetByID(ctx, testShop, confirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, "AWB001", got.AWB)
	assert.Equal(t, domain.CourierDelhivery, got.Courier)

	// a second assignment is refused
	results, err = env.svc.Shipping.AssignAWBs(ctx, env.store, ownerUID, AssignAWBRequest{OrderIDs: []uuid.UUID{confirmed.ID}})
	require.NoError(t, err)
	assert.False(t, results[0].OK)
	assert.Contains(t, results[0].Error, "already has AWB")
	assert.Len(t, env.courier.booked, 1)
}

func assignedOrder(t *testing.T, env *testEnv) *domain.Order {
	t.Helper()
	order := env.seedOrder(t, 1001, domain.StatusConfirmed)
	results, err := env.svc.Shipping.AssignAWBs(context.Background(), env.store, ownerUID, AssignAWBRequest{OrderIDs: []uuid.UUID{order.ID}})
	require.NoError(t, err)
	require.True(t, results[0].OK)
	return order
}

func TestTrackingSyncMovesOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.template(t, "shipped", domain.EventOrderDispatched, "tracking_url")
	order := assignedOrder(t, env)

	// nothing to apply yet
	summary, err := env.svc.Shipping.SyncTracking(ctx)
	require.NoError(t, err)
	assert.Equal(t, TrackingSyncSummary{Stores: 1, Checked: 1}, summary)

	env.courier.scans["AWB001"] = &courier.Tracking{AWB: "AWB001", RawStatus: "Picked Up", Status: domain.StatusDispatched, Location: "Pune Hub"}
	summary, err = env.svc.Shipping.SyncTracking(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	detail, err := env.svc.Orders.Get(ctx, testShop, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDispatched, detail.Order.CustomStatus)
	last := detail.Logs[len(detail.Logs)-1]
	assert.Equal(t, "courier:delhivery", last.CreatedBy)
	assert.Equal(t, "Picked Up (Pune Hub)", last.Remarks)

	require.Len(t, env.admin.fulfilled, 1)
	assert.Equal(t, "AWB001", env.admin.fulfilled[0].Number)
	assert.Equal(t, []string{"shipped"}, env.sender.templates())
	assert.Equal(t, []string{"https://www.delhivery.com/track/package/AWB001"}, env.sender.sent[0].BodyValues)

	delivered := env.clock.Now().Add(-time.Hour)
	env.courier.scans["AWB001"] = &courier.Tracking{AWB: "AWB001", RawStatus: "Delivered", Status: domain.StatusDelivered, DeliveredAt: &delivered}
	_, got, err := env.svc.Shipping.Track(ctx, env.store, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, got.CustomStatus)
	require.NotNil(t, got.DeliveredAt)
	assert.True(t, delivered.Equal(*got.DeliveredAt))

	// delivered orders are no longer polled
	summary, err = env.svc.Shipping.SyncTracking(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Checked)
}

func TestTrackingIgnoresUnreachableStatus(t *testing.T) {
	env := newTestEnv(t)
	order := assignedOrder(t, env)
	env.courier.scans["AWB001"] = &courier.Tracking{AWB: "AWB001", RawStatus: "RTO Delivered", Status: domain.StatusRTODelivered}

	tracking, got, err := env.svc.Shipping.Track(context.Background(), env.store, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "RTO Delivered", tracking.RawStatus)
	assert.Equal(t, domain.StatusReadyToDispatch, got.CustomStatus)
}

func TestTrackWithoutAWB(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t, 1001, domain.StatusConfirmed)
	_, _, err := env.svc.Shipping.Track(context.Background(), env.store, order.ID)
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)
}

func TestCancelShipment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := assignedOrder(t, env)

	got, err := env.svc.Shipping.CancelShipment(ctx, env.store, ownerUID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.CustomStatus)
	assert.Empty(t, got.AWB)
	assert.Empty(t, got.Courier)
	assert.Equal(t, []string{"AWB001"}, env.courier.cancelled)

	// the order can be booked again
	results, err := env.svc.Shipping.AssignAWBs(ctx, env.store, ownerUID, AssignAWBRequest{OrderIDs: []uuid.UUID{order.ID}})
	require.NoError(t, err)
	assert.Equal(t, "AWB002", results[0].AWB)
}

func TestCancelShipmentAfterHandover(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := assignedOrder(t, env)
	_, err := env.svc.Orders.UpdateStatus(ctx, env.store, ownerUID, order.ID, domain.StatusDispatched, "")
	require.NoError(t, err)

	_, err = env.svc.Shipping.CancelShipment(ctx, env.store, ownerUID, order.ID)
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)
	assert.Empty(t, env.courier.cancelled)
}
