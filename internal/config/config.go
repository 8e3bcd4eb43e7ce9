package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	JWT            JWTConfig
	CORS           CORSConfig
	Security       SecurityConfig
	Pricing        PricingConfig
	Maps           MapsConfig
	Stripe         StripeConfig
	Email          EmailConfig
	MFA            MFAConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	Reconciliation ReconciliationConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
	PublicURL   string // base URL of the web front end, used for checkout redirects
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	RunMigrations      bool
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret             string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	BcryptCost       int
	EnableRequestLog bool
	EnableAuditLog   bool
}

// PricingConfig holds the trip price formula
type PricingConfig struct {
	RatePerMile float64
	BaseFee     float64
	Currency    string
}

// MapsConfig holds address lookup provider settings
type MapsConfig struct {
	GoogleAPIKey       string
	NominatimURL       string
	NominatimUserAgent string
}

// StripeConfig holds hosted checkout configuration
type StripeConfig struct {
	SecretKey     string // SECRET - never expose to client
	WebhookSecret string // shared secret for Stripe-Signature verification
	SuccessURL    string
	CancelURL     string
}

// EmailConfig holds transactional email configuration
type EmailConfig struct {
	ResendAPIKey    string
	From            string
	AdminRecipients []string
}

// MFAConfig holds TOTP configuration
type MFAConfig struct {
	Issuer string
}

// RedisConfig holds cache and counter store configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// KafkaConfig holds notification topic configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// ReconciliationConfig controls the abandoned checkout sweep
type ReconciliationConfig struct {
	Enabled    bool
	Schedule   string // cron spec with seconds field
	PendingTTL time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			PublicURL:   getEnv("PUBLIC_URL", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			RunMigrations:      getEnvAsBool("DATABASE_RUN_MIGRATIONS", true),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", ""),
			RefreshSecret:      getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenExpiry:  time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
			RefreshTokenExpiry: time.Duration(getEnvAsInt("JWT_REFRESH_TOKEN_EXPIRY", 604800)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "Stripe-Signature", "x-client-info", "apikey"}),
		},
		Security: SecurityConfig{
			BcryptCost:       getEnvAsInt("BCRYPT_COST", 12),
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			EnableAuditLog:   getEnvAsBool("ENABLE_AUDIT_LOGGING", true),
		},
		Pricing: PricingConfig{
			RatePerMile: getEnvAsFloat("PRICING_RATE_PER_MILE", 5),
			BaseFee:     getEnvAsFloat("PRICING_BASE_FEE", 15),
			Currency:    getEnv("PRICING_CURRENCY", "usd"),
		},
		Maps: MapsConfig{
			GoogleAPIKey:       getEnv("GOOGLE_MAPS_API_KEY", ""),
			NominatimURL:       getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
			NominatimUserAgent: getEnv("NOMINATIM_USER_AGENT", "luxride-booking-portal/1.0"),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:    getEnv("STRIPE_SUCCESS_URL", ""),
			CancelURL:     getEnv("STRIPE_CANCEL_URL", ""),
		},
		Email: EmailConfig{
			ResendAPIKey:    getEnv("RESEND_API_KEY", ""),
			From:            getEnv("EMAIL_FROM", "bookings@luxride.example"),
			AdminRecipients: getEnvAsSlice("EMAIL_ADMIN_RECIPIENTS", nil),
		},
		MFA: MFAConfig{
			Issuer: getEnv("MFA_ISSUER", "LuxRide"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: time.Duration(getEnvAsInt("REDIS_CACHE_TTL_SECONDS", 60)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_NOTIFICATIONS_TOPIC", "booking-notifications"),
			GroupID: getEnv("KAFKA_GROUP_ID", "booking-portal-relay"),
		},
		Reconciliation: ReconciliationConfig{
			Enabled:    getEnvAsBool("RECONCILE_ENABLED", true),
			Schedule:   getEnv("RECONCILE_SCHEDULE", "0 */15 * * * *"),
			PendingTTL: time.Duration(getEnvAsInt("RECONCILE_PENDING_TTL_MINUTES", 1440)) * time.Minute,
		},
	}

	// Checkout redirects default to the public site
	if config.Stripe.SuccessURL == "" {
		config.Stripe.SuccessURL = strings.TrimRight(config.Server.PublicURL, "/") + "/booking/success?session_id={CHECKOUT_SESSION_ID}"
	}
	if config.Stripe.CancelURL == "" {
		config.Stripe.CancelURL = strings.TrimRight(config.Server.PublicURL, "/") + "/booking/cancelled"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.Pricing.RatePerMile < 0 || c.Pricing.BaseFee < 0 {
		return fmt.Errorf("pricing values must not be negative")
	}

	// Payment and maps credentials are mandatory outside development
	if c.Server.Environment == "production" {
		if c.Stripe.SecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required in production")
		}
		if c.Stripe.WebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
		}
		if c.Maps.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_MAPS_API_KEY is required in production")
		}
	}

	if c.Reconciliation.Enabled && c.Reconciliation.PendingTTL <= 0 {
		return fmt.Errorf("RECONCILE_PENDING_TTL_MINUTES must be positive")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
