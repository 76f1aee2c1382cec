package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// VerifyWebhook checks the base64 HMAC-SHA256 of the raw webhook body
func VerifyWebhook(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	// constant-time compare
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(header)))
}

// SignWebhook returns the header value Shopify would send for body
func SignWebhook(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// proxyMessage builds the App Proxy signing string: sorted key=value pairs,
// repeated values comma-joined, concatenated without separators.
func proxyMessage(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		if k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(q[k], ","))
	}
	return b.String()
}

// SignProxyQuery returns the hex signature for an App Proxy query
func SignProxyQuery(q url.Values, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(proxyMessage(q)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyProxySignature checks the signature parameter Shopify adds to App Proxy requests
func VerifyProxySignature(q url.Values, secret string) bool {
	if secret == "" {
		return false
	}
	got, err := hex.DecodeString(q.Get("signature"))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(proxyMessage(q)))
	return hmac.Equal(mac.Sum(nil), got)
}
