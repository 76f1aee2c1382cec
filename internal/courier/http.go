package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// httpClient is the shared JSON plumbing of the courier clients
type httpClient struct {
	name    string
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func newHTTPClient(name, baseURL string, logger *zap.Logger) httpClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return httpClient{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// APIError is a non-2xx courier response
type APIError struct {
	Courier    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Courier, e.StatusCode, e.Body)
}

// do sends body (JSON-encoded unless it is an io.Reader) and decodes the response into out
func (c httpClient) do(ctx context.Context, method, path string, headers map[string]string, body, out interface{}) error {
	var reader io.Reader
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case formBody:
		reader = strings.NewReader(string(b))
		contentType = "application/x-www-form-urlencoded"
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Courier request failed", zap.String("courier", c.name), zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Courier: c.name, StatusCode: resp.StatusCode, Body: truncate(string(raw), 500)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.name, err)
	}
	return nil
}

type formBody string

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
