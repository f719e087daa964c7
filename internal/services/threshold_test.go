package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/ruralpay/billpay/internal/cache"
	"github.com/ruralpay/billpay/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const thresholdQuery = "SELECT value FROM system_config WHERE key = \\$1"

func testPaymentConfig() *config.PaymentConfig {
	return &config.PaymentConfig{
		DefaultThreshold:     decimal.NewFromInt(10000),
		MaxSettleAttempts:    3,
		PaymentRefPrefix:     "BP-",
		VerifiedRefPrefix:    "BPV-",
		InvoiceRefPrefix:     "INV-",
		DefaultDocumentPath:  "pending_upload",
		DefaultDocumentType:  "INVOICE",
		ConfigCacheTTL:       5 * time.Minute,
		PayeeCacheTTL:        10 * time.Minute,
		TransactionPageLimit: 20,
	}
}

func TestThresholdResolver_VerificationThreshold(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		rows *sqlmock.Rows
		err  error
		want decimal.Decimal
	}{
		{"stored value", sqlmock.NewRows([]string{"value"}).AddRow("5000"), nil, decimal.NewFromInt(5000)},
		{"stored value with spaces", sqlmock.NewRows([]string{"value"}).AddRow(" 2500.50 "), nil, decimal.RequireFromString("2500.50")},
		{"missing key", nil, sql.ErrNoRows, decimal.NewFromInt(10000)},
		{"unparseable", sqlmock.NewRows([]string{"value"}).AddRow("ten thousand"), nil, decimal.NewFromInt(10000)},
		{"negative", sqlmock.NewRows([]string{"value"}).AddRow("-1"), nil, decimal.NewFromInt(10000)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			q := mock.ExpectQuery(thresholdQuery).WithArgs(config.ThresholdConfigKey)
			if tc.err != nil {
				q.WillReturnError(tc.err)
			} else {
				q.WillReturnRows(tc.rows)
			}

			resolver := NewThresholdResolver(db, cache.New(nil), testPaymentConfig())
			got, err := resolver.VerificationThreshold(ctx)

			assert.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("database failure propagates", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(thresholdQuery).WillReturnError(errors.New("connection reset"))

		resolver := NewThresholdResolver(db, nil, testPaymentConfig())
		_, err = resolver.VerificationThreshold(ctx)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "load verification threshold")
	})

	t.Run("repeated calls agree", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(thresholdQuery).WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("7500"))
		mock.ExpectQuery(thresholdQuery).WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("7500"))

		resolver := NewThresholdResolver(db, nil, testPaymentConfig())
		first, err := resolver.VerificationThreshold(ctx)
		require.NoError(t, err)
		second, err := resolver.VerificationThreshold(ctx)
		require.NoError(t, err)

		assert.True(t, first.Equal(second))
	})

	t.Run("served from cache", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		client, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet(thresholdCacheKey).RedisNil()
		mock.ExpectQuery(thresholdQuery).WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("5000"))
		redisMock.ExpectSet(thresholdCacheKey, `"5000"`, 5*time.Minute).SetVal("OK")
		redisMock.ExpectGet(thresholdCacheKey).SetVal(`"5000"`)

		resolver := NewThresholdResolver(db, cache.New(client), testPaymentConfig())
		first, err := resolver.VerificationThreshold(ctx)
		require.NoError(t, err)
		second, err := resolver.VerificationThreshold(ctx)
		require.NoError(t, err)

		assert.True(t, first.Equal(decimal.NewFromInt(5000)))
		assert.True(t, first.Equal(second))
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}
