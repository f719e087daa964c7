package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ruralpay/billpay/internal/cache"
	"github.com/ruralpay/billpay/internal/config"
	"github.com/shopspring/decimal"
)

const thresholdCacheKey = "system_config:" + config.ThresholdConfigKey

// ThresholdResolver resolves the amount above which a bill payment needs a
// supporting document.
type ThresholdResolver struct {
	db       *sql.DB
	cache    *cache.Cache
	fallback decimal.Decimal
	ttl      time.Duration
}

func NewThresholdResolver(db *sql.DB, c *cache.Cache, cfg *config.PaymentConfig) *ThresholdResolver {
	return &ThresholdResolver{
		db:       db,
		cache:    c,
		fallback: cfg.DefaultThreshold,
		ttl:      cfg.ConfigCacheTTL,
	}
}

// VerificationThreshold never fails for a missing or malformed setting; it
// returns the configured default instead. Only storage errors are returned.
func (r *ThresholdResolver) VerificationThreshold(ctx context.Context) (decimal.Decimal, error) {
	return cache.GetOrSet(ctx, r.cache, thresholdCacheKey, r.ttl, r.load)
}

func (r *ThresholdResolver) load(ctx context.Context) (decimal.Decimal, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM system_config WHERE key = $1`, config.ThresholdConfigKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return r.fallback, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("load verification threshold: %w", err)
	}

	threshold, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || threshold.IsNegative() {
		log.Printf("[THRESHOLD] Malformed %s value %q, using default %s", config.ThresholdConfigKey, raw, r.fallback)
		return r.fallback, nil
	}
	return threshold, nil
}
