package config

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// ThresholdConfigKey is the system_config row that governs payment verification.
const ThresholdConfigKey = "payment_verification_threshold"

type PaymentConfig struct {
	DefaultThreshold     decimal.Decimal
	MaxSettleAttempts    int
	PaymentRefPrefix     string
	VerifiedRefPrefix    string
	InvoiceRefPrefix     string
	DefaultDocumentPath  string
	DefaultDocumentType  string
	ConfigCacheTTL       time.Duration
	PayeeCacheTTL        time.Duration
	InvoiceWebhookURL    string
	WebhookSecret        string
	WebhookTimeout       time.Duration
	UploadDir            string
	MaxUploadBytes       int64
	TransactionPageLimit int
}

func LoadPaymentConfig() *PaymentConfig {
	viper.SetDefault("payments.default_threshold", "10000")
	viper.SetDefault("payments.max_settle_attempts", 3)
	viper.SetDefault("payments.reference_prefix", "BP-")
	viper.SetDefault("payments.verified_reference_prefix", "BPV-")
	viper.SetDefault("payments.invoice_reference_prefix", "INV-")
	viper.SetDefault("payments.default_document_path", "pending_upload")
	viper.SetDefault("payments.default_document_type", "INVOICE")
	viper.SetDefault("payments.page_limit", 20)
	viper.SetDefault("cache.config_ttl", 5*time.Minute)
	viper.SetDefault("cache.payee_ttl", 10*time.Minute)
	viper.SetDefault("webhook.invoice_url", "")
	viper.SetDefault("webhook.secret", "")
	viper.SetDefault("webhook.timeout", 5*time.Second)
	viper.SetDefault("uploads.dir", "./uploads")
	viper.SetDefault("uploads.max_bytes", 10<<20)

	threshold, err := decimal.NewFromString(viper.GetString("payments.default_threshold"))
	if err != nil || threshold.IsNegative() {
		threshold = decimal.NewFromInt(10000)
	}

	attempts := viper.GetInt("payments.max_settle_attempts")
	if attempts < 1 {
		attempts = 1
	}

	return &PaymentConfig{
		DefaultThreshold:     threshold,
		MaxSettleAttempts:    attempts,
		PaymentRefPrefix:     viper.GetString("payments.reference_prefix"),
		VerifiedRefPrefix:    viper.GetString("payments.verified_reference_prefix"),
		InvoiceRefPrefix:     viper.GetString("payments.invoice_reference_prefix"),
		DefaultDocumentPath:  viper.GetString("payments.default_document_path"),
		DefaultDocumentType:  viper.GetString("payments.default_document_type"),
		ConfigCacheTTL:       viper.GetDuration("cache.config_ttl"),
		PayeeCacheTTL:        viper.GetDuration("cache.payee_ttl"),
		InvoiceWebhookURL:    viper.GetString("webhook.invoice_url"),
		WebhookSecret:        viper.GetString("webhook.secret"),
		WebhookTimeout:       viper.GetDuration("webhook.timeout"),
		UploadDir:            viper.GetString("uploads.dir"),
		MaxUploadBytes:       viper.GetInt64("uploads.max_bytes"),
		TransactionPageLimit: viper.GetInt("payments.page_limit"),
	}
}
