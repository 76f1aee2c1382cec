package shopify

import (
	"context"
	"fmt"
	"net/http"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/config"
	"github.com/jafarshop/opsapi/internal/domain"
)

// Payments captures authorised payments of prepaid orders
type Payments interface {
	Capture(ctx context.Context, store *domain.Store, orderID int64, amount decimal.Decimal) error
}

// PaymentClient uses the REST transactions API through go-shopify
type PaymentClient struct {
	app        goshopify.App
	apiVersion string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPaymentClient creates a new payment client
func NewPaymentClient(cfg config.ShopifyConfig, logger *zap.Logger) *PaymentClient {
	return &PaymentClient{
		app: goshopify.App{
			ApiKey:    cfg.APIKey,
			ApiSecret: cfg.APISecret,
		},
		apiVersion: cfg.APIVersion,
		logger:     logger,
	}
}

// Capture captures amount against the order's successful authorization
func (p *PaymentClient) Capture(ctx context.Context, store *domain.Store, orderID int64, amount decimal.Decimal) error {
	version := store.APIVersion
	if version == "" {
		version = p.apiVersion
	}
	opts := []goshopify.Option{goshopify.WithVersion(version)}
	if p.httpClient != nil {
		opts = append(opts, goshopify.WithHTTPClient(p.httpClient))
	}
	client, err := goshopify.NewClient(p.app, store.Shop, store.AccessToken, opts...)
	if err != nil {
		return fmt.Errorf("failed to create shopify REST client: %w", err)
	}

	transactions, err := client.Transaction.List(ctx, uint64(orderID), nil)
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}

	var authorization *goshopify.Transaction
	for i := range transactions {
		t := &transactions[i]
		if t.Kind == "authorization" && t.Status == "success" {
			authorization = t
			break
		}
	}
	if authorization == nil {
		return fmt.Errorf("order %d has no successful authorization to capture", orderID)
	}

	parentID := int64(authorization.Id)
	capture := goshopify.Transaction{
		Kind:     "capture",
		ParentId: &parentID,
		Amount:   &amount,
		Currency: authorization.Currency,
	}
	if _, err := client.Transaction.Create(ctx, uint64(orderID), capture); err != nil {
		return fmt.Errorf("failed to capture payment: %w", err)
	}

	p.logger.Info("Captured payment",
		zap.String("shop", store.Shop),
		zap.Int64("shopify_order_id", orderID),
		zap.String("amount", amount.String()),
	)
	return nil
}
