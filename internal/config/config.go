package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	Environment   string
	LogLevel      string
	StorageDriver string // "postgres" or "memory"
	Database      DatabaseConfig
	Shopify       ShopifyConfig
	Auth          AuthConfig
	CORS          CORSConfig
	Redis         RedisConfig
	PubSub        PubSubConfig
	GCS           GCSConfig
	Vendors       VendorConfig
	Checkout      CheckoutConfig
	Tracking      TrackingConfig
	// ORDER_EVENTS_WEBHOOK_URL: order events are POSTed here when Pub/Sub is not configured
	OrderEventsWebhookURL string
	DefaultPhoneRegion    string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ShopifyConfig holds the app-level credentials; per-store access tokens live on the store record.
type ShopifyConfig struct {
	APIKey     string
	APISecret  string // signs webhooks and App Proxy requests
	APIVersion string
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RedisConfig struct {
	Addr     string // empty disables distributed locking
	Password string
	DB       int
}

type PubSubConfig struct {
	ProjectID       string
	OrdersTopic     string
	CredentialsJSON string
}

type GCSConfig struct {
	Bucket          string
	CredentialsJSON string
}

// VendorConfig overrides vendor API base URLs (sandbox environments, tests).
type VendorConfig struct {
	InteraktBaseURL   string
	DelhiveryBaseURL  string
	ShiprocketBaseURL string
	XpressbeesBaseURL string
	BluedartBaseURL   string
}

type CheckoutConfig struct {
	SessionTTL   time.Duration
	CustomerTTL  time.Duration
	ReturnWindow time.Duration
}

type TrackingConfig struct {
	SyncInterval time.Duration // 0 disables the background loop
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:          getEnvOrViper("PORT", "8080"),
		Environment:   getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:      getEnvOrViper("LOG_LEVEL", "info"),
		StorageDriver: strings.ToLower(getEnvOrViper("STORAGE_DRIVER", "postgres")),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "opsapi"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Shopify: ShopifyConfig{
			APIKey:     strings.TrimSpace(getEnvOrViper("SHOPIFY_API_KEY", "")),
			APISecret:  strings.TrimSpace(getEnvOrViper("SHOPIFY_API_SECRET", "")),
			APIVersion: getEnvOrViper("SHOPIFY_API_VERSION", "2025-01"),
		},
		Auth: AuthConfig{
			JWTSecret: strings.TrimSpace(getEnvOrViper("AUTH_JWT_SECRET", "")),
			JWTIssuer: strings.TrimSpace(getEnvOrViper("AUTH_JWT_ISSUER", "")),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnvOrViper("CORS_ALLOWED_ORIGINS", "")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getEnvOrViper("REDIS_ADDR", "")),
			Password: getEnvOrViper("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:       strings.TrimSpace(getEnvOrViper("PUBSUB_PROJECT_ID", "")),
			OrdersTopic:     getEnvOrViper("PUBSUB_ORDERS_TOPIC", "order-events"),
			CredentialsJSON: getEnvOrViper("GOOGLE_CREDENTIALS_JSON", ""),
		},
		GCS: GCSConfig{
			Bucket:          strings.TrimSpace(getEnvOrViper("GCS_BUCKET", "")),
			CredentialsJSON: getEnvOrViper("GOOGLE_CREDENTIALS_JSON", ""),
		},
		Vendors: VendorConfig{
			InteraktBaseURL:   getEnvOrViper("INTERAKT_BASE_URL", "https://api.interakt.ai"),
			DelhiveryBaseURL:  getEnvOrViper("DELHIVERY_BASE_URL", "https://track.delhivery.com"),
			ShiprocketBaseURL: getEnvOrViper("SHIPROCKET_BASE_URL", "https://apiv2.shiprocket.in"),
			XpressbeesBaseURL: getEnvOrViper("XPRESSBEES_BASE_URL", "https://shipment.xpressbees.com"),
			BluedartBaseURL:   getEnvOrViper("BLUEDART_BASE_URL", "https://apigateway.bluedart.com"),
		},
		Checkout: CheckoutConfig{
			SessionTTL:   getDurationOrDefault("CHECKOUT_SESSION_TTL", 30*time.Minute),
			CustomerTTL:  getDurationOrDefault("CHECKOUT_CUSTOMER_TTL", 90*24*time.Hour),
			ReturnWindow: getDurationOrDefault("RETURN_WINDOW", 7*24*time.Hour),
		},
		Tracking: TrackingConfig{
			SyncInterval: getDurationOrDefault("TRACKING_SYNC_INTERVAL", 30*time.Minute),
		},
		OrderEventsWebhookURL: strings.TrimSpace(getEnvOrViper("ORDER_EVENTS_WEBHOOK_URL", "")),
		DefaultPhoneRegion:    strings.ToUpper(getEnvOrViper("DEFAULT_PHONE_REGION", "IN")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields
func (c *Config) Validate() error {
	if c.Shopify.APISecret == "" {
		return fmt.Errorf("SHOPIFY_API_SECRET is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	switch c.StorageDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORAGE_DRIVER must be postgres or memory, got %q", c.StorageDriver)
	}
	if c.Checkout.SessionTTL <= 0 {
		return fmt.Errorf("CHECKOUT_SESSION_TTL must be positive")
	}
	return nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
