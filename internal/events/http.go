package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const webhookTimeout = 10 * time.Second

// HTTPPublisher POSTs each event as JSON to a fixed URL
type HTTPPublisher struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewHTTPPublisher(url string, logger *zap.Logger) *HTTPPublisher {
	return &HTTPPublisher{
		url:        url,
		httpClient: &http.Client{Timeout: webhookTimeout},
		logger:     logger,
	}
}

func (p *HTTPPublisher) Publish(ctx context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("Order event request failed", zap.String("url", p.url), zap.Error(err))
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("order event endpoint returned %d", resp.StatusCode)
	}
	p.logger.Debug("Order event sent", zap.String("type", event.Type), zap.Int("status", resp.StatusCode))
	return nil
}

func (p *HTTPPublisher) Close() error { return nil }
