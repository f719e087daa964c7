package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadPaymentConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		viper.Reset()

		cfg := LoadPaymentConfig()

		assert.True(t, cfg.DefaultThreshold.Equal(decimal.NewFromInt(10000)))
		assert.Equal(t, 3, cfg.MaxSettleAttempts)
		assert.Equal(t, "BP-", cfg.PaymentRefPrefix)
		assert.Equal(t, "BPV-", cfg.VerifiedRefPrefix)
		assert.Equal(t, "INV-", cfg.InvoiceRefPrefix)
		assert.Equal(t, 5*time.Minute, cfg.ConfigCacheTTL)
		assert.Equal(t, 5*time.Second, cfg.WebhookTimeout)
		assert.Empty(t, cfg.InvoiceWebhookURL)
	})

	t.Run("overrides", func(t *testing.T) {
		viper.Reset()
		viper.Set("payments.default_threshold", "2500.50")
		viper.Set("payments.max_settle_attempts", 5)
		viper.Set("webhook.invoice_url", "https://billing.example.com/hooks/invoice")

		cfg := LoadPaymentConfig()

		assert.True(t, cfg.DefaultThreshold.Equal(decimal.RequireFromString("2500.50")))
		assert.Equal(t, 5, cfg.MaxSettleAttempts)
		assert.Equal(t, "https://billing.example.com/hooks/invoice", cfg.InvoiceWebhookURL)
	})

	t.Run("invalid values fall back", func(t *testing.T) {
		viper.Reset()
		viper.Set("payments.default_threshold", "lots")
		viper.Set("payments.max_settle_attempts", 0)

		cfg := LoadPaymentConfig()

		assert.True(t, cfg.DefaultThreshold.Equal(decimal.NewFromInt(10000)))
		assert.Equal(t, 1, cfg.MaxSettleAttempts)
	})
}
