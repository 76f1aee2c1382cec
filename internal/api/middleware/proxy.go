package middleware

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/shopify"
	"github.com/jafarshop/opsapi/pkg/errors"
)

const ProxyStoreContextKey = "proxy_store"

// StoreFinder looks up a connected store by shop domain
type StoreFinder interface {
	GetByShop(ctx context.Context, shop string) (*domain.Store, error)
}

// ProxySignature verifies Shopify App Proxy requests and resolves the calling store
func ProxySignature(secret string, stores StoreFinder, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		if !shopify.VerifyProxySignature(query, secret) {
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid proxy signature")
			return
		}

		shop := shopify.NormalizeShopDomain(query.Get("shop"))
		if shop == "" {
			abort(c, http.StatusBadRequest, "bad_request", "shop is required")
			return
		}
		store, err := stores.GetByShop(c.Request.Context(), shop)
		var notFound *errors.ErrNotFound
		switch {
		case stderrors.As(err, &notFound):
			logger.Warn("Proxy request for unknown store", zap.String("shop", shop))
			abort(c, http.StatusNotFound, "not_found", "store not found")
			return
		case err != nil:
			logger.Error("Failed to load proxy store", zap.String("shop", shop), zap.Error(err))
			abort(c, http.StatusInternalServerError, "internal_error", "internal error")
			return
		}

		c.Set(ProxyStoreContextKey, store)
		c.Next()
	}
}

// GetProxyStore returns the store resolved by ProxySignature
func GetProxyStore(c *gin.Context) *domain.Store {
	v, _ := c.Get(ProxyStoreContextKey)
	store, _ := v.(*domain.Store)
	return store
}
