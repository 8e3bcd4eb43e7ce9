package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")
	t.Setenv("PUBLIC_URL", "https://rides.example/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5.0, cfg.Pricing.RatePerMile)
	assert.Equal(t, 15.0, cfg.Pricing.BaseFee)
	assert.Equal(t, "usd", cfg.Pricing.Currency)
	assert.Equal(t, 24*time.Hour, cfg.Reconciliation.PendingTTL)
	assert.Equal(t, "https://rides.example/booking/cancelled", cfg.Stripe.CancelURL)
	assert.Contains(t, cfg.Stripe.SuccessURL, "{CHECKOUT_SESSION_ID}")
	assert.Contains(t, cfg.CORS.AllowedHeaders, "Stripe-Signature")
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidate_ProductionRequiresStripe(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Environment: "production"},
		Database: DatabaseConfig{URL: "postgres://x"},
		JWT:      JWTConfig{Secret: "a", RefreshSecret: "b"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_SECRET_KEY")
}

func TestGetEnvAsSlice(t *testing.T) {
	t.Setenv("TEST_SLICE", " a, b ,,c ")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvAsSlice("TEST_SLICE", nil))

	t.Setenv("TEST_SLICE", " , ")
	assert.Equal(t, []string{"x"}, getEnvAsSlice("TEST_SLICE", []string{"x"}))
}

func TestGetEnvAsFloat_Invalid(t *testing.T) {
	t.Setenv("TEST_FLOAT", "abc")
	assert.Equal(t, 2.5, getEnvAsFloat("TEST_FLOAT", 2.5))
}
