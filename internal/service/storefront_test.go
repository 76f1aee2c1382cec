package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/pkg/errors"
)

func newSession(t *testing.T, env *testEnv) *domain.CheckoutSession {
	t.Helper()
	session, err := env.svc.Storefront.CreateSession(context.Background(), testShop, CreateSessionRequest{
		Items: []SessionItemRequest{{VariantID: 42, Quantity: 2, Title: "T-shirt", Price: decimal.NewFromInt(199)}},
	})
	require.NoError(t, err)
	return session
}

func TestSessionExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := newSession(t, env)
	assert.Equal(t, domain.CheckoutOpen, session.Status)
	assert.Equal(t, "398", session.Subtotal().String())

	_, err := env.svc.Storefront.GetSession(ctx, testShop, session.ID)
	require.NoError(t, err)

	env.clock.Advance(31 * time.Minute)
	_, err = env.svc.Storefront.GetSession(ctx, testShop, session.ID)
	var gone *errors.ErrGone
	require.ErrorAs(t, err, &gone)

	_, err = env.svc.Storefront.Identify(ctx, testShop, session.ID, IdentifyRequest{Phone: "9876543210"})
	require.ErrorAs(t, err, &gone)
}

func TestCreateSessionValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Storefront.CreateSession(context.Background(), testShop, CreateSessionRequest{
		Items: []SessionItemRequest{{VariantID: 42, Quantity: 0}},
	})
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields, "items[0]")
}

func TestIdentifyAndAddresses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := newSession(t, env)

	_, err := env.svc.Storefront.ListAddresses(ctx, testShop, session.ID)
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)

	_, err = env.svc.Storefront.Identify(ctx, testShop, session.ID, IdentifyRequest{Phone: "12"})
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields, "phone")

	customer, err := env.svc.Storefront.Identify(ctx, testShop, session.ID, IdentifyRequest{Phone: "+91 98765-43210", Name: "Asha Rao"})
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", customer.Phone)

	first, err := env.svc.Storefront.AddAddress(ctx, testShop, session.ID, AddressRequest{Name: "Asha Rao", Address1: "1 MG Road", City: "Pune", Zip: "411001"})
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.Equal(t, "+919876543210", first.Phone)
	assert.Equal(t, "IN", first.CountryCode)

	second, err := env.svc.Storefront.AddAddress(ctx, testShop, session.ID, AddressRequest{Name: "Asha Rao", Address1: "2 FC Road", City: "Pune", Zip: "411004"})
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	_, err = env.svc.Storefront.AddAddress(ctx, testShop, session.ID, AddressRequest{Name: "Office", Address1: "3 SB Road", City: "Pune", Zip: "411016", IsDefault: true})
	require.NoError(t, err)

	addrs, err := env.svc.Storefront.ListAddresses(ctx, testShop, session.ID)
	require.NoError(t, err)
	require.Len(t, addrs, 3)
	defaults := 0
	for _, a := range addrs {
		if a.IsDefault {
			defaults++
			assert.Equal(t, "Office", a.Name)
		}
	}
	assert.Equal(t, 1, defaults)

	// the customer is remembered by a later session
	later := newSession(t, env)
	_, err = env.svc.Storefront.Identify(ctx, testShop, later.ID, IdentifyRequest{Phone: "9876543210"})
	require.NoError(t, err)
	addrs, err = env.svc.Storefront.ListAddresses(ctx, testShop, later.ID)
	require.NoError(t, err)
	assert.Len(t, addrs, 3)
}

func TestExpiredCustomerStartsOver(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := newSession(t, env)
	_, err := env.svc.Storefront.Identify(ctx, testShop, session.ID, IdentifyRequest{Phone: "9876543210", Name: "Asha"})
	require.NoError(t, err)
	_, err = env.svc.Storefront.AddAddress(ctx, testShop, session.ID, AddressRequest{Name: "Asha", Address1: "1 MG Road", City: "Pune", Zip: "411001"})
	require.NoError(t, err)

	env.clock.Advance(25 * time.Hour)
	later := newSession(t, env)
	customer, err := env.svc.Storefront.Identify(ctx, testShop, later.ID, IdentifyRequest{Phone: "9876543210"})
	require.NoError(t, err)
	assert.Empty(t, customer.Addresses)
	assert.Empty(t, customer.Name)
}

func TestPlaceOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := newSession(t, env)
	_, err := env.svc.Storefront.Identify(ctx, testShop, session.ID, IdentifyRequest{Phone: "9876543210", Email: "asha@example.com"})
	require.NoError(t, err)
	addr, err := env.svc.Storefront.AddAddress(ctx, testShop, session.ID, AddressRequest{
		Name: "Asha Rao", Address1: "1 MG Road", Address2: "Flat 4", City: "Pune", Province: "MH", Zip: "411001",
	})
	require.NoError(t, err)

	_, err = env.svc.Storefront.PlaceOrder(ctx, env.store, session.ID, PlaceOrderRequest{AddressID: "nope", PaymentMethod: "cod"})
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields, "addressId")

	placed, err := env.svc.Storefront.PlaceOrder(ctx, env.store, session.ID, PlaceOrderRequest{AddressID: addr.ID, PaymentMethod: "COD"})
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutCompleted, placed.Status)
	assert.Equal(t, "cod", placed.PaymentMethod)
	assert.Equal(t, "5001", placed.ShopifyOrderID)
	assert.Equal(t, "#1001", placed.OrderName)

	require.Len(t, env.admin.drafts, 1)
	draft := env.admin.drafts[0]
	assert.Equal(t, []string{TagProxyCheckout, TagCOD}, draft.Tags)
	require.Len(t, draft.LineItems, 1)
	assert.Equal(t, "gid://shopify/ProductVariant/42", *draft.LineItems[0].VariantID)
	assert.Equal(t, 2, draft.LineItems[0].Quantity)
	assert.Equal(t, "asha@example.com", *draft.Email)
	assert.Equal(t, "Asha", draft.ShippingAddress.FirstName)
	assert.Equal(t, "Rao", *draft.ShippingAddress.LastName)
	assert.Equal(t, "Flat 4", *draft.ShippingAddress.Address2)
	assert.Equal(t, "IN", draft.ShippingAddress.CountryCode)

	// placing twice returns the first result without a second draft
	again, err := env.svc.Storefront.PlaceOrder(ctx, env.store, session.ID, PlaceOrderRequest{AddressID: addr.ID, PaymentMethod: "prepaid"})
	require.NoError(t, err)
	assert.Equal(t, "#1001", again.OrderName)
	assert.Len(t, env.admin.drafts, 1)
	assert.Len(t, env.admin.completed, 1)
}

func TestPlaceOrderRequiresIdentifiedCustomer(t *testing.T) {
	env := newTestEnv(t)
	session := newSession(t, env)
	_, err := env.svc.Storefront.PlaceOrder(context.Background(), env.store, session.ID, PlaceOrderRequest{AddressID: "a", PaymentMethod: "cod"})
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)

	_, err = env.svc.Storefront.PlaceOrder(context.Background(), env.store, session.ID, PlaceOrderRequest{AddressID: "a", PaymentMethod: "upi"})
	require.ErrorAs(t, err, &validation)
	assert.Empty(t, env.admin.drafts)
}

func deliveredOrder(t *testing.T, env *testEnv, deliveredAgo time.Duration) *domain.Order {
	t.Helper()
	order := env.seedOrder(t, 1001, domain.StatusDelivered,
		domain.OrderLineItem{ShopifyLineItemID: 11, VariantID: 42, SKU: "TS-M", Title: "T-shirt", Quantity: 2},
		domain.OrderLineItem{ShopifyLineItemID: 12, VariantID: 43, SKU: "CAP", Title: "Cap", Quantity: 1},
	)
	at := env.clock.Now().Add(-deliveredAgo)
	order.DeliveredAt = &at
	require.NoError(t, env.repos.Order.Update(context.Background(), order))
	return order
}

func TestLookupReturn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deliveredOrder(t, env, 2*24*time.Hour)

	elig, err := env.svc.Storefront.LookupReturn(ctx, testShop, ReturnLookupRequest{OrderName: "1001", Phone: "+919876543210"})
	require.NoError(t, err)
	assert.True(t, elig.Eligible)
	require.NotNil(t, elig.ExpiresAt)

	_, err = env.svc.Storefront.LookupReturn(ctx, testShop, ReturnLookupRequest{OrderName: "#1001", Phone: "9999999999"})
	var notFound *errors.ErrNotFound
	require.ErrorAs(t, err, &notFound)

	env.clock.Advance(6 * 24 * time.Hour)
	elig, err = env.svc.Storefront.LookupReturn(ctx, testShop, ReturnLookupRequest{OrderName: "#1001", Phone: "9876543210"})
	require.NoError(t, err)
	assert.False(t, elig.Eligible)
	assert.Equal(t, "return window has closed", elig.Reason)
}

func TestLookupReturnNotDelivered(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1001, domain.StatusInTransit)

	elig, err := env.svc.Storefront.LookupReturn(context.Background(), testShop, ReturnLookupRequest{OrderName: "#1001", Phone: "9876543210"})
	require.NoError(t, err)
	assert.False(t, elig.Eligible)
	assert.Equal(t, "order is In Transit", elig.Reason)
}

func TestCreateReturn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := deliveredOrder(t, env, 24*time.Hour)

	_, err := env.svc.Storefront.CreateReturn(ctx, env.store, CreateReturnRequest{
		OrderName: "#1001", Phone: "9876543210", Reason: "size",
		Items: []ReturnItemRequest{{LineItemID: 11, Quantity: 3}, {LineItemID: 99, Quantity: 1}},
	})
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields["items[0].quantity"], "at most 2")
	assert.Contains(t, validation.Fields, "items[1].lineItemId")

	ret, err := env.svc.Storefront.CreateReturn(ctx, env.store, CreateReturnRequest{
		OrderName: "#1001", Phone: "9876543210", Reason: " too small ",
		Items: []ReturnItemRequest{{LineItemID: 11, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "requested", ret.Status)
	assert.Equal(t, "too small", ret.Reason)
	assert.Equal(t, "+919876543210", ret.Phone)
	require.Len(t, ret.Items, 1)
	assert.Equal(t, "TS-M", ret.Items[0].SKU)

	detail, err := env.svc.Orders.Get(ctx, testShop, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDTORequested, detail.Order.CustomStatus)
	require.Len(t, detail.Logs, 1)
	assert.Equal(t, "customer", detail.Logs[0].CreatedBy)

	// a second partial return is accepted and counts against the first
	_, err = env.svc.Storefront.CreateReturn(ctx, env.store, CreateReturnRequest{
		OrderName: "#1001", Phone: "9876543210", Reason: "again",
		Items: []ReturnItemRequest{{LineItemID: 11, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = env.svc.Storefront.CreateReturn(ctx, env.store, CreateReturnRequest{
		OrderName: "#1001", Phone: "9876543210", Reason: "third",
		Items: []ReturnItemRequest{{LineItemID: 11, Quantity: 1}},
	})
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields["items[0].quantity"], "at most 0")

	detail, err = env.svc.Orders.Get(ctx, testShop, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDTORequested, detail.Order.CustomStatus)
	assert.Len(t, detail.Logs, 1)

	_, err = env.svc.Storefront.CreateReturn(ctx, env.store, CreateReturnRequest{
		OrderName: "#1001", Phone: "9876543210", Reason: "cap",
		Items: []ReturnItemRequest{{LineItemID: 12, Quantity: 1}},
	})
	require.NoError(t, err)

	elig, err := env.svc.Storefront.LookupReturn(ctx, testShop, ReturnLookupRequest{OrderName: "#1001", Phone: "9876543210"})
	require.NoError(t, err)
	assert.False(t, elig.Eligible)
	assert.Equal(t, "all items already requested for return", elig.Reason)
	assert.Equal(t, 2, elig.Returned[11])
}

func TestReturnSubtractsEarlierRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := deliveredOrder(t, env, time.Hour)
	require.NoError(t, env.repos.ReturnRequest.Create(ctx, &domain.ReturnRequest{
		ID: uuid.New(), Shop: testShop, OrderID: order.ID, OrderName: order.Name,
		Items: []domain.ReturnItem{{LineItemID: 11, Quantity: 2}}, Status: "requested",
	}))

	elig, err := env.svc.Storefront.LookupReturn(ctx, testShop, ReturnLookupRequest{OrderName: "#1001", Phone: "9876543210"})
	require.NoError(t, err)
	assert.Equal(t, 2, elig.Returned[11])

	_, err = env.svc.Storefront.CreateReturn(ctx, env.store, CreateReturnRequest{
		OrderName: "#1001", Phone: "9876543210", Reason: "x",
		Items: []ReturnItemRequest{{LineItemID: 11, Quantity: 1}},
	})
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields["items[0].quantity"], "at most 0")
}
