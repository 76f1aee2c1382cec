package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/shopify"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type stubStores struct {
	store *domain.Store
	err   error
}

func (s stubStores) GetByShop(ctx context.Context, shop string) (*domain.Store, error) {
	return s.store, s.err
}

func proxyRequest(t *testing.T, stores StoreFinder) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/proxy", ProxySignature("secret", stores, zap.NewNop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"shop": GetProxyStore(c).Shop})
	})

	q := url.Values{}
	q.Set("shop", "acme.myshopify.com")
	q.Set("timestamp", "1700000000")
	q.Set("signature", shopify.SignProxyQuery(q, "secret"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/proxy?"+q.Encode(), nil))
	return w
}

func TestProxySignatureStoreLookup(t *testing.T) {
	w := proxyRequest(t, stubStores{store: &domain.Store{Shop: "acme.myshopify.com"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acme.myshopify.com")

	w = proxyRequest(t, stubStores{err: &errors.ErrNotFound{Resource: "store", ID: "acme.myshopify.com"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = proxyRequest(t, stubStores{err: stderrors.New("connection refused")})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
}
