package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jafarshop/opsapi/internal/config"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/internal/repository/memory"
	"github.com/jafarshop/opsapi/internal/service"
	"github.com/jafarshop/opsapi/internal/shopify"
)

const (
	testShop   = "acme.myshopify.com"
	testSecret = "shopify-secret"
	jwtSecret  = "jwt-secret"
	ownerUID   = "owner-1"
	serviceKey = "svc_test_key"
)

type testServer struct {
	router   *gin.Engine
	repos    *repository.Repositories
	svc      *service.Services
	business *domain.Business
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zap.NewNop()

	cfg := &config.Config{
		Environment:        "test",
		Shopify:            config.ShopifyConfig{APISecret: testSecret, APIVersion: "2025-01"},
		Auth:               config.AuthConfig{JWTSecret: jwtSecret, JWTIssuer: "ops-dashboard"},
		DefaultPhoneRegion: "IN",
		Checkout: config.CheckoutConfig{
			SessionTTL:   30 * time.Minute,
			CustomerTTL:  24 * time.Hour,
			ReturnWindow: 7 * 24 * time.Hour,
		},
	}
	repos := memory.NewRepositories(logger)
	svc := service.New(service.Deps{Config: cfg, Repos: repos, Logger: logger})

	business, err := svc.Tenancy.CreateBusiness(ctx, ownerUID, "owner@example.com", service.CreateBusinessRequest{Name: "Acme Apparel"})
	require.NoError(t, err)
	require.NoError(t, repos.Store.Create(ctx, &domain.Store{
		Shop:        testShop,
		BusinessID:  &business.ID,
		Name:        "Acme",
		AccessToken: "shpat_secret_token",
		Integrations: domain.StoreIntegrations{
			Couriers: map[string]domain.CourierCredentials{
				domain.CourierDelhivery: {Token: "delhivery-token-1234", PickupLocation: "Main WH", Enabled: true},
			},
		},
	}))

	hash, err := bcrypt.GenerateFromPassword([]byte(serviceKey), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, repos.ServiceKey.Create(ctx, &domain.ServiceKey{
		Name:      "scheduler",
		KeyHash:   string(hash),
		KeyLookup: domain.APIKeyLookupHash(serviceKey),
		IsActive:  true,
	}))

	return &testServer{
		router:   NewRouter(cfg, repos, svc, logger),
		repos:    repos,
		svc:      svc,
		business: business,
	}
}

func userToken(t *testing.T, uid string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uid,
		Issuer:    "ops-dashboard",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOrderWebhook(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"id":1001,"name":"#1001","financial_status":"pending","total_price":"398.00","currency":"INR",
		"payment_gateway_names":["Cash on Delivery (COD)"],"created_at":"2025-03-10T09:00:00Z","updated_at":"2025-03-10T09:00:00Z",
		"line_items":[{"id":1,"variant_id":42,"sku":"TS-M","title":"T-shirt","quantity":2,"price":"199.00"}]}`)
	headers := func(sig, id string) map[string]string {
		return map[string]string{
			"X-Shopify-Topic":       shopify.TopicOrdersCreate,
			"X-Shopify-Shop-Domain": testShop,
			"X-Shopify-Webhook-Id":  id,
			"X-Shopify-Hmac-Sha256": sig,
		}
	}

	w := s.do(t, http.MethodPost, "/api/webhooks/orders", "", body, headers("bm90LXZhbGlk", "wh-1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	sig := shopify.SignWebhook(testSecret, body)
	w = s.do(t, http.MethodPost, "/api/webhooks/orders", "", body, headers(sig, "wh-1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "created", decode(t, w)["status"])

	w = s.do(t, http.MethodPost, "/api/webhooks/orders", "", body, headers(sig, "wh-1"))
	assert.Equal(t, "duplicate", decode(t, w)["status"])

	order, err := s.repos.Order.GetByShopifyID(context.Background(), testShop, 1001)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, order.CustomStatus)

	unknown := headers(sig, "wh-2")
	unknown["X-Shopify-Shop-Domain"] = "other.myshopify.com"
	w = s.do(t, http.MethodPost, "/api/webhooks/orders", "", body, unknown)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "store_not_found", decode(t, w)["status"])
}

func TestUserAuthAndTenancy(t *testing.T) {
	s := newTestServer(t)
	path := "/api/businesses/" + s.business.ID.String()

	w := s.do(t, http.MethodGet, path, "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, path, "not-a-jwt", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: ownerUID, Issuer: "elsewhere"}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	w = s.do(t, http.MethodGet, path, wrongIssuer, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, path, userToken(t, ownerUID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "owner", decode(t, w)["role"])

	w = s.do(t, http.MethodGet, path, userToken(t, "stranger"), nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/businesses/"+uuid.NewString(), userToken(t, ownerUID), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/businesses/nope", userToken(t, ownerUID), nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/stores/"+testShop+"/orders", userToken(t, "stranger"), nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStoreViewMasksCredentials(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/stores/"+testShop, userToken(t, ownerUID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.NotContains(t, w.Body.String(), "delhivery-token-1234")
	assert.NotContains(t, w.Body.String(), "shpat_secret_token")
	couriers := decode(t, w)["couriers"].(map[string]interface{})
	assert.Equal(t, "****1234", couriers["delhivery"].(map[string]interface{})["token"])
}

func TestValidationErrorsUseJSONNames(t *testing.T) {
	s := newTestServer(t)
	path := "/api/businesses/" + s.business.ID.String() + "/products"

	w := s.do(t, http.MethodPost, path, userToken(t, ownerUID), map[string]interface{}{"name": "T-shirt"}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "validation_failed", body["error"])
	assert.Equal(t, "required", body["fields"].(map[string]interface{})["sku"])

	w = s.do(t, http.MethodPost, path, userToken(t, ownerUID), []byte(`{"sku":`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, path, userToken(t, ownerUID), map[string]interface{}{"sku": "TS-M", "name": "T-shirt", "price": "199"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, path, userToken(t, ownerUID), map[string]interface{}{"sku": "TS-M", "name": "Again", "price": "199"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPurchaseOrderIdempotency(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	token := userToken(t, ownerUID)
	base := "/api/businesses/" + s.business.ID.String()

	_, err := s.svc.Products.Create(ctx, s.business.ID, service.ProductRequest{SKU: "TS-M", Name: "T-shirt"})
	require.NoError(t, err)
	supplier, err := s.svc.Purchasing.CreateSupplier(ctx, s.business.ID, service.SupplierRequest{Name: "Mill"})
	require.NoError(t, err)
	warehouse, err := s.svc.Purchasing.CreateWarehouse(ctx, s.business.ID, service.WarehouseRequest{Name: "Main", Code: "wh-1"})
	require.NoError(t, err)

	req := map[string]interface{}{
		"supplierId":  supplier.ID,
		"warehouseId": warehouse.ID,
		"items":       []map[string]interface{}{{"sku": "TS-M", "orderedQty": 10, "unitCost": "120"}},
	}
	key := map[string]string{"Idempotency-Key": "po-1"}

	w := s.do(t, http.MethodPost, base+"/purchase-orders", token, req, key)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode(t, w)
	assert.Equal(t, "PO-00001", first["number"])

	w = s.do(t, http.MethodPost, base+"/purchase-orders", token, req, key)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, first["id"], decode(t, w)["id"])

	req["notes"] = "changed"
	w = s.do(t, http.MethodPost, base+"/purchase-orders", token, req, key)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, base+"/purchase-orders/"+first["id"].(string)+"/status", token, map[string]string{"status": "fully_received"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPost, base+"/purchase-orders/"+first["id"].(string)+"/status", token, map[string]string{"status": "closed"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, base+"/purchase-orders?format=xlsx", token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PK", w.Body.String()[:2])
}

func signedProxyPath(path, shop string) string {
	q := url.Values{}
	q.Set("shop", shop)
	q.Set("path_prefix", "/apps/checkout")
	q.Set("timestamp", "1741597200")
	q.Set("signature", shopify.SignProxyQuery(q, testSecret))
	return path + "?" + q.Encode()
}

func TestProxySignature(t *testing.T) {
	s := newTestServer(t)
	session := map[string]interface{}{"items": []map[string]interface{}{{"variantId": 42, "quantity": 1, "title": "T-shirt", "price": "199"}}}

	w := s.do(t, http.MethodPost, "/api/proxy/checkout/sessions?shop="+testShop, "", session, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, signedProxyPath("/api/proxy/checkout/sessions", "unknown.myshopify.com"), "", session, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, signedProxyPath("/api/proxy/checkout/sessions", testShop), "", session, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodGet, signedProxyPath("/api/proxy/checkout/sessions/"+id, testShop), "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["identified"])

	w = s.do(t, http.MethodPost, signedProxyPath("/api/proxy/checkout/sessions/"+id+"/order", testShop), "", map[string]string{"addressId": "a1", "paymentMethod": "cod"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestInternalTrackingSyncRequiresServiceKey(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/internal/tracking/sync", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/internal/tracking/sync", "svc_wrong", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/internal/tracking/sync", serviceKey, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode(t, w)["stores"])
}
