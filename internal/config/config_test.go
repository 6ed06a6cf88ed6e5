package config

import (
	"testing"
	"time"

	"esimsync/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("MOBIMATTER_API_KEY", "key")
	t.Setenv("MOBIMATTER_MERCHANT_ID", "merchant")
	t.Setenv("SHOPIFY_STORE_DOMAIN", "demo.myshopify.com")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "shpat_x")
	t.Setenv("SHOPIFY_API_VERSION", "2024-01")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retry.CompleteAttempts)
	assert.Equal(t, 5*time.Second, cfg.Retry.CompleteDelay)
	assert.Equal(t, 5, cfg.Retry.LookupAttempts)
	assert.Equal(t, 5, cfg.Retry.ArtifactAttempts)
	assert.Equal(t, 50, cfg.Retry.RecoveryBatchSize)
	assert.True(t, cfg.SendActivationEmail)
	assert.Equal(t, "orders-paid", cfg.KafkaOrdersTopic)
	assert.Equal(t, "esim", cfg.ShopifyMetafieldNamespace)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("COMPLETE_ATTEMPTS", "7")
	t.Setenv("LOOKUP_DELAY", "250ms")
	t.Setenv("ARTIFACT_DELAY", "2")
	t.Setenv("SEND_ACTIVATION_EMAIL", "false")
	t.Setenv("CATALOG_PRUNE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Retry.CompleteAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.LookupDelay)
	assert.Equal(t, 2*time.Second, cfg.Retry.ArtifactDelay)
	assert.False(t, cfg.SendActivationEmail)
	assert.True(t, cfg.Catalog.Prune)
}

func TestLoad_MissingCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("MOBIMATTER_API_KEY", "")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.Contains(t, err.Error(), "MOBIMATTER_API_KEY")
	assert.Contains(t, err.Error(), "SHOPIFY_ACCESS_TOKEN")
	assert.NotContains(t, err.Error(), "SHOPIFY_STORE_DOMAIN")
}

func TestValidate_RetryBounds(t *testing.T) {
	setRequired(t)
	t.Setenv("LOOKUP_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}
