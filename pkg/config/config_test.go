package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("order-service")
	require.NoError(t, err)

	assert.Equal(t, "order-service", cfg.ServiceName)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Minute, cfg.Checkout.BuyNowTTL)
	assert.Equal(t, 5*time.Second, cfg.Razorpay.Timeout)
	assert.Equal(t, uint(3), cfg.Razorpay.MaxTries)
	assert.Equal(t, "INR", cfg.Razorpay.Currency)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("BUYNOW_TTL", "5m")
	t.Setenv("SIGNATURE_MAX_FAILURES", "2")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load("order-service")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Minute, cfg.Checkout.BuyNowTTL)
	assert.Equal(t, 2, cfg.Checkout.SignatureMaxFailures)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("order-service")
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg.Razorpay.KeyID = "rzp_key"
	cfg.Razorpay.KeySecret = "rzp"
	assert.NoError(t, cfg.ValidatePayments())
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "jwt"
	assert.NoError(t, cfg.Validate())
}
