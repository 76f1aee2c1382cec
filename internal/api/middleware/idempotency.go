package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/service"
)

const (
	IdempotencyKeyHeader  = "Idempotency-Key"
	idempotencyContextKey = "idempotency"
)

// Idempotency captures the Idempotency-Key header and a hash of the request body.
// Replay and conflict detection happen in the service, inside the create transaction.
func Idempotency(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > 255 {
			abort(c, http.StatusBadRequest, "bad_request", "Idempotency-Key is too long")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logger.Error("Failed to read request body for idempotency", zap.Error(err))
			abort(c, http.StatusInternalServerError, "internal_error", "failed to process request")
			return
		}
		// Restore body for handler
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		hash := sha256.Sum256(body)
		c.Set(idempotencyContextKey, &service.Idempotency{
			Key:         key,
			Scope:       c.Request.URL.Path,
			RequestHash: hex.EncodeToString(hash[:]),
		})
		c.Next()
	}
}

// GetIdempotency returns the request's idempotency info, or nil when no key was sent
func GetIdempotency(c *gin.Context) *service.Idempotency {
	v, exists := c.Get(idempotencyContextKey)
	if !exists {
		return nil
	}
	idem, _ := v.(*service.Idempotency)
	return idem
}
