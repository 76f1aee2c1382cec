package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/pkg/errors"
)

func TestResolveParams(t *testing.T) {
	store := &domain.Store{Shop: testShop, Name: "Acme"}
	order := &domain.Order{
		Name:         "#1001",
		CustomerName: "",
		TotalPrice:   decimal.RequireFromString("598.9"),
		Currency:     "INR",
		AWB:          "AWB1",
		Courier:      domain.CourierDelhivery,
		ShippingAddress: &domain.Address{
			Name: "Asha Rao",
		},
	}

	got := ResolveParams([]string{"customer_name", "{{order_name}}", "{{ total_price }}", "awb", "courier", "tracking_url", "store_name", "Thanks!"}, store, order)
	assert.Equal(t, []string{
		"Asha Rao",
		"#1001",
		"INR 598.90",
		"AWB1",
		"delhivery",
		"https://www.delhivery.com/track/package/AWB1",
		"Acme",
		"Thanks!",
	}, got)

	store.Name = ""
	assert.Equal(t, []string{testShop}, ResolveParams([]string{"STORE_NAME"}, store, order))
}

func TestTemplatesCRUD(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tpl := env.template(t, "order_confirmation", domain.EventOrderCreated, "order_name")
	assert.Equal(t, "en", tpl.LanguageCode)
	assert.True(t, tpl.Active)

	_, err := env.svc.Messaging.CreateTemplate(ctx, testShop, TemplateRequest{Name: "order_confirmation", Event: domain.EventManual})
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)

	_, err = env.svc.Messaging.CreateTemplate(ctx, testShop, TemplateRequest{Name: "x", Event: "order_paid"})
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)

	inactive := false
	updated, err := env.svc.Messaging.UpdateTemplate(ctx, testShop, tpl.ID, TemplateRequest{Name: "order_confirmation", Event: domain.EventManual, Active: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, domain.EventManual, updated.Event)

	list, err := env.svc.Messaging.ListTemplates(ctx, testShop)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, env.svc.Messaging.DeleteTemplate(ctx, testShop, tpl.ID))
	_, err = env.svc.Messaging.GetTemplate(ctx, testShop, tpl.ID)
	var notFound *errors.ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestSendManual(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tpl := env.template(t, "promo", domain.EventManual, "customer_name")
	good := env.seedOrder(t, 1001, domain.StatusNew)
	bad := env.seedOrder(t, 1002, domain.StatusNew)
	bad.Phone = "123"
	bad.ShippingAddress.Phone = ""
	require.NoError(t, env.repos.Order.Update(ctx, bad))

	results, err := env.svc.Messaging.SendManual(ctx, env.store, SendTemplateRequest{
		TemplateID: tpl.ID,
		OrderIDs:   []uuid.UUID{good.ID, bad.ID, uuid.New()},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[0].OK)
	assert.Equal(t, "msg-1", results[0].MessageID)
	assert.False(t, results[1].OK)
	assert.Contains(t, results[1].Error, "no valid phone")
	assert.False(t, results[2].OK)

	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, []string{"Asha Rao"}, env.sender.sent[0].BodyValues)
	assert.Equal(t, good.ID.String(), env.sender.sent[0].CallbackData)
}

func TestSendManualRequiresSetup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inactive := false
	tpl, err := env.svc.Messaging.CreateTemplate(ctx, testShop, TemplateRequest{Name: "off", Event: domain.EventManual, Active: &inactive})
	require.NoError(t, err)

	_, err = env.svc.Messaging.SendManual(ctx, env.store, SendTemplateRequest{TemplateID: tpl.ID, OrderIDs: []uuid.UUID{uuid.New()}})
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)

	env.store.Integrations.Interakt = nil
	_, err = env.svc.Messaging.SendManual(ctx, env.store, SendTemplateRequest{TemplateID: tpl.ID, OrderIDs: []uuid.UUID{uuid.New()}})
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, err.Error(), "not configured")
}
