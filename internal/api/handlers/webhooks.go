package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/service"
)

const maxWebhookBody = 5 << 20

// HandleOrderWebhook handles POST /api/webhooks/orders.
// Configure Shopify webhook topics orders/create, orders/updated and orders/delete.
// Every outcome except a bad signature or an unreadable payload answers 200 so Shopify stops retrying.
func HandleOrderWebhook(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Read raw body (Shopify HMAC is computed over raw bytes)
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "failed to read body"})
			return
		}

		delivery := service.WebhookDelivery{
			Topic:     c.GetHeader("X-Shopify-Topic"),
			Shop:      c.GetHeader("X-Shopify-Shop-Domain"),
			WebhookID: c.GetHeader("X-Shopify-Webhook-Id"),
			HMAC:      c.GetHeader("X-Shopify-Hmac-Sha256"),
			Body:      body,
		}
		status, err := svc.Webhooks.HandleOrderWebhook(c.Request.Context(), delivery)
		if err != nil {
			logger.Warn("Order webhook rejected",
				zap.String("topic", delivery.Topic),
				zap.String("shop", delivery.Shop),
				zap.String("webhook_id", delivery.WebhookID),
				zap.Error(err),
			)
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}

// HandleTrackingSync handles POST /api/internal/tracking/sync
func HandleTrackingSync(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := svc.Shipping.SyncTracking(c.Request.Context())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
