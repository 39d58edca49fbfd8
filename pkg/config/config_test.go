package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("does-not-exist")
	require.NoError(t, err)

	assert.Equal(t, GatewayLocal, cfg.Billing.Default)
	assert.Equal(t, "billing-local.sqlite", cfg.Billing.Gateways.Local.Database)
	assert.Equal(t, 200, cfg.Billing.Gateways.Local.APIDelayMs)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PAYFLOW_BILLING_DEFAULT", GatewayStripe)
	t.Setenv("PAYFLOW_BILLING_GATEWAYS_STRIPE_SECRET", "sk_test_123")

	cfg, err := Load("does-not-exist")
	require.NoError(t, err)

	assert.Equal(t, GatewayStripe, cfg.Billing.Default)
	assert.Equal(t, "sk_test_123", cfg.Billing.Gateways.Stripe.Secret)
}
