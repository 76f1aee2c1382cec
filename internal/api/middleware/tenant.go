package middleware

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/pkg/errors"
)

const (
	BusinessContextKey = "business"
	MemberContextKey   = "business_member"
	StoreContextKey    = "store"
)

// TenantAuthorizer decides whether a user may act on a business or store
type TenantAuthorizer interface {
	AuthUserForBusiness(ctx context.Context, uid string, businessID uuid.UUID) (*domain.Business, *domain.BusinessMember, error)
	AuthUserForStore(ctx context.Context, uid, shop string) (*domain.Store, error)
}

// RequireBusiness authorises the :businessId path parameter for the current user
func RequireBusiness(auth TenantAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessID, err := uuid.Parse(c.Param("businessId"))
		if err != nil {
			abort(c, http.StatusBadRequest, "bad_request", "invalid business id")
			return
		}
		business, member, err := auth.AuthUserForBusiness(c.Request.Context(), GetUID(c), businessID)
		if err != nil {
			abortTenant(c, err)
			return
		}
		c.Set(BusinessContextKey, business)
		c.Set(MemberContextKey, member)
		c.Next()
	}
}

// RequireStore authorises the :shop path parameter for the current user
func RequireStore(auth TenantAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, err := auth.AuthUserForStore(c.Request.Context(), GetUID(c), c.Param("shop"))
		if err != nil {
			abortTenant(c, err)
			return
		}
		c.Set(StoreContextKey, store)
		c.Next()
	}
}

func GetBusiness(c *gin.Context) *domain.Business {
	v, _ := c.Get(BusinessContextKey)
	b, _ := v.(*domain.Business)
	return b
}

func GetMember(c *gin.Context) *domain.BusinessMember {
	v, _ := c.Get(MemberContextKey)
	m, _ := v.(*domain.BusinessMember)
	return m
}

func GetStore(c *gin.Context) *domain.Store {
	v, _ := c.Get(StoreContextKey)
	s, _ := v.(*domain.Store)
	return s
}

func abortTenant(c *gin.Context, err error) {
	var notFound *errors.ErrNotFound
	var forbidden *errors.ErrForbidden
	switch {
	case stderrors.As(err, &notFound):
		abort(c, http.StatusNotFound, "not_found", err.Error())
	case stderrors.As(err, &forbidden):
		abort(c, http.StatusForbidden, "forbidden", err.Error())
	default:
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
