package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/config"
	"github.com/jafarshop/opsapi/internal/domain"
)

const (
	UIDContextKey        = "uid"
	EmailContextKey      = "email"
	ServiceKeyContextKey = "service_key"
)

// userClaims are the claims of dashboard tokens; sub is the user id
type userClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserAuth authenticates dashboard users with an HS256 bearer token
func UserAuth(cfg config.AuthConfig, logger *zap.Logger) gin.HandlerFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	parser := jwt.NewParser(opts...)
	secret := []byte(cfg.JWTSecret)

	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing or malformed authorization header")
			return
		}

		claims := &userClaims{}
		_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil || claims.Subject == "" {
			logger.Debug("Rejected user token", zap.Error(err))
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		c.Set(UIDContextKey, claims.Subject)
		c.Set(EmailContextKey, claims.Email)
		c.Next()
	}
}

// ServiceKeyAuthenticator resolves machine API keys
type ServiceKeyAuthenticator interface {
	AuthenticateServiceKey(ctx context.Context, apiKey string) (*domain.ServiceKey, error)
}

// ServiceKeyAuth authenticates internal routes with a bearer service key
func ServiceKeyAuth(keys ServiceKeyAuthenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey, ok := bearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing or malformed authorization header")
			return
		}

		key, err := keys.AuthenticateServiceKey(c.Request.Context(), apiKey)
		if err != nil {
			logger.Warn("Failed to authenticate service key", zap.Error(err))
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid API key")
			return
		}

		c.Set(ServiceKeyContextKey, key)
		c.Next()
	}
}

// GetUID returns the authenticated user id
func GetUID(c *gin.Context) string {
	return c.GetString(UIDContextKey)
}

// GetEmail returns the email claim of the user token, if any
func GetEmail(c *gin.Context) string {
	return c.GetString(EmailContextKey)
}

// GetServiceKey retrieves the service key from the Gin context
func GetServiceKey(c *gin.Context) (*domain.ServiceKey, bool) {
	v, exists := c.Get(ServiceKeyContextKey)
	if !exists {
		return nil, false
	}
	key, ok := v.(*domain.ServiceKey)
	return key, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}
