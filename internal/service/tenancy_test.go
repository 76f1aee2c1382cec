package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/pkg/errors"
)

func TestAuthUserForBusiness(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	business, member, err := env.svc.Tenancy.AuthUserForBusiness(ctx, ownerUID, env.businessID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Apparel", business.Name)
	assert.Equal(t, domain.RoleOwner, member.Role)

	_, _, err = env.svc.Tenancy.AuthUserForBusiness(ctx, "stranger", env.businessID)
	var forbidden *errors.ErrForbidden
	require.ErrorAs(t, err, &forbidden)

	_, _, err = env.svc.Tenancy.AuthUserForBusiness(ctx, ownerUID, uuid.New())
	var notFound *errors.ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Tenancy.AddMember(ctx, ownerUID, env.businessID, AddMemberRequest{UID: "packer", Role: domain.RoleMember})
	require.NoError(t, err)

	// plain members cannot manage others
	_, err = env.svc.Tenancy.AddMember(ctx, "packer", env.businessID, AddMemberRequest{UID: "other", Role: domain.RoleMember})
	var forbidden *errors.ErrForbidden
	require.ErrorAs(t, err, &forbidden)

	_, err = env.svc.Tenancy.AddMember(ctx, ownerUID, env.businessID, AddMemberRequest{UID: "x", Role: domain.RoleOwner})
	var validation *errors.ErrValidation
	require.ErrorAs(t, err, &validation)

	_, err = env.svc.Tenancy.AddMember(ctx, ownerUID, env.businessID, AddMemberRequest{UID: ownerUID, Role: domain.RoleAdmin})
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)

	members, err := env.svc.Tenancy.ListMembers(ctx, "packer", env.businessID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	require.ErrorAs(t, env.svc.Tenancy.RemoveMember(ctx, ownerUID, env.businessID, ownerUID), &conflict)
	require.NoError(t, env.svc.Tenancy.RemoveMember(ctx, ownerUID, env.businessID, "packer"))

	_, _, err = env.svc.Tenancy.AuthUserForBusiness(ctx, "packer", env.businessID)
	require.ErrorAs(t, err, &forbidden)
}

func TestAuthUserForStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	store, err := env.svc.Tenancy.AuthUserForStore(ctx, ownerUID, "ACME.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, testShop, store.Shop)

	_, err = env.svc.Tenancy.AuthUserForStore(ctx, "stranger", testShop)
	var forbidden *errors.ErrForbidden
	require.ErrorAs(t, err, &forbidden)

	require.NoError(t, env.repos.Store.UpsertMember(ctx, &domain.StoreMember{Shop: testShop, UID: "stranger", Role: domain.RoleMember}))
	_, err = env.svc.Tenancy.AuthUserForStore(ctx, "stranger", testShop)
	require.NoError(t, err)

	_, _, err = env.svc.Tenancy.AuthUserForBusinessAndStore(ctx, ownerUID, env.businessID, testShop)
	require.NoError(t, err)
}

func TestLinkStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const shop = "beta.myshopify.com"
	require.NoError(t, env.repos.Store.Create(ctx, &domain.Store{Shop: shop}))
	require.NoError(t, env.repos.Store.UpsertMember(ctx, &domain.StoreMember{Shop: shop, UID: ownerUID, Role: domain.RoleOwner}))

	store, err := env.svc.Tenancy.LinkStore(ctx, ownerUID, env.businessID, shop)
	require.NoError(t, err)
	require.NotNil(t, store.BusinessID)
	assert.Equal(t, env.businessID, *store.BusinessID)

	stores, err := env.svc.Tenancy.ListStores(ctx, ownerUID, env.businessID)
	require.NoError(t, err)
	assert.Len(t, stores, 2)

	other, err := env.svc.Tenancy.CreateBusiness(ctx, ownerUID, "", CreateBusinessRequest{Name: "Other"})
	require.NoError(t, err)
	_, err = env.svc.Tenancy.LinkStore(ctx, ownerUID, other.ID, shop)
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)

	_, _, err = env.svc.Tenancy.AuthUserForBusinessAndStore(ctx, ownerUID, other.ID, shop)
	var forbidden *errors.ErrForbidden
	require.ErrorAs(t, err, &forbidden)
}

func TestAuthenticateServiceKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const raw = "svc_live_0123456789"
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, env.repos.ServiceKey.Create(ctx, &domain.ServiceKey{
		Name:      "erp",
		KeyHash:   string(hash),
		KeyLookup: domain.APIKeyLookupHash(raw),
		IsActive:  true,
	}))

	key, err := env.svc.Tenancy.AuthenticateServiceKey(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "erp", key.Name)

	_, err = env.svc.Tenancy.AuthenticateServiceKey(ctx, "svc_live_wrong")
	var unauthorized *errors.ErrUnauthorized
	require.ErrorAs(t, err, &unauthorized)
}
