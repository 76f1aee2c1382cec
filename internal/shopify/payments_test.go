package shopify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/config"
	"github.com/jafarshop/opsapi/internal/domain"
)

// rewriteTransport sends every request to target regardless of host
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

func testPaymentClient(t *testing.T, srv *httptest.Server) *PaymentClient {
	t.Helper()
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	p := NewPaymentClient(config.ShopifyConfig{APIVersion: "2025-01"}, zap.NewNop())
	p.httpClient = &http.Client{Transport: rewriteTransport{target: target}}
	return p
}

func TestCaptureUsesAuthorizationAsParent(t *testing.T) {
	var created map[string]map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2025-01/orders/450789469/transactions.json", r.URL.Path)
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"transactions":[
				{"id":1001,"kind":"authorization","status":"failure","currency":"USD"},
				{"id":389404469,"kind":"authorization","status":"success","currency":"USD"}
			]}`))
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"transaction":{"id":389404470,"kind":"capture","status":"success"}}`))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	store := &domain.Store{Shop: "acme.myshopify.com", AccessToken: "shpat_test"}
	err := testPaymentClient(t, srv).Capture(context.Background(), store, 450789469, decimal.RequireFromString("10.50"))
	require.NoError(t, err)

	require.NotNil(t, created)
	tx := created["transaction"]
	assert.Equal(t, "capture", tx["kind"])
	assert.Equal(t, float64(389404469), tx["parent_id"])
	assert.Equal(t, "USD", tx["currency"])
	amount, ok := tx["amount"].(string)
	require.True(t, ok, "amount %v", tx["amount"])
	assert.True(t, decimal.RequireFromString(amount).Equal(decimal.RequireFromString("10.5")))
}

func TestCaptureWithoutAuthorization(t *testing.T) {
	posted := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posted = true
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transactions":[{"id":7,"kind":"sale","status":"success"}]}`))
	}))
	defer srv.Close()

	store := &domain.Store{Shop: "acme.myshopify.com", AccessToken: "shpat_test"}
	err := testPaymentClient(t, srv).Capture(context.Background(), store, 42, decimal.NewFromInt(5))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no successful authorization"))
	assert.False(t, posted)
}
