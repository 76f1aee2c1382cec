// Package whatsapp sends pre-approved template messages through Interakt.
package whatsapp

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

	"github.com/jafarshop/opsapi/internal/phone"
)

// TemplateMessage is one template send to one recipient
type TemplateMessage struct {
	Phone        string // E.164
	TemplateName string
	LanguageCode string
	BodyValues   []string
	CallbackData string
}

// Sender sends template messages with a store's API key
type Sender interface {
	SendTemplate(ctx context.Context, apiKey string, msg TemplateMessage) (string, error)
}

// Client calls the Interakt public API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

type sendRequest struct {
	CountryCode  string          `json:"countryCode"`
	PhoneNumber  string          `json:"phoneNumber"`
	CallbackData string          `json:"callbackData,omitempty"`
	Type         string          `json:"type"`
	Template     templatePayload `json:"template"`
}

type templatePayload struct {
	Name         string   `json:"name"`
	LanguageCode string   `json:"languageCode"`
	BodyValues   []string `json:"bodyValues"`
}

type sendResponse struct {
	Result  bool   `json:"result"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// SendTemplate returns the Interakt message id
func (c *Client) SendTemplate(ctx context.Context, apiKey string, msg TemplateMessage) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("interakt api key not configured")
	}
	cc, number, err := phone.WhatsAppParts(msg.Phone)
	if err != nil {
		return "", err
	}
	lang := msg.LanguageCode
	if lang == "" {
		lang = "en"
	}
	values := msg.BodyValues
	if values == nil {
		values = []string{}
	}

	body, err := json.Marshal(sendRequest{
		CountryCode:  cc,
		PhoneNumber:  number,
		CallbackData: msg.CallbackData,
		Type:         "Template",
		Template: templatePayload{
			Name:         msg.TemplateName,
			LanguageCode: lang,
			BodyValues:   values,
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/public/message/", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Basic "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Interakt request failed", zap.String("template", msg.TemplateName), zap.Error(err))
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("interakt returned %d: %s", resp.StatusCode, string(raw))
	}
	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode interakt response: %w", err)
	}
	if !out.Result {
		return "", fmt.Errorf("interakt rejected message: %s", out.Message)
	}
	return out.ID, nil
}
