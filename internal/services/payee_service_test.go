package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/ruralpay/billpay/internal/cache"
	"github.com/ruralpay/billpay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listPayeesQuery = "SELECT id, user_id, name, category, account_number, routing_number, created_at FROM bill_payees WHERE user_id = \\$1 ORDER BY created_at DESC"

func payeeRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "name", "category", "account_number", "routing_number", "created_at"}).
		AddRow("payee-2", "user-1", "Metro Water", "WATER", "88001234", "", fixedNow).
		AddRow("payee-1", "user-1", "City Power", "UTILITIES", "0012345678", "021000021", fixedNow.Add(-time.Hour))
}

func TestPayeeService_ListPayees(t *testing.T) {
	ctx := context.Background()

	t.Run("without cache", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewPayeeService(db, cache.New(nil), 10*time.Minute)
		mock.ExpectQuery(listPayeesQuery).WithArgs("user-1").WillReturnRows(payeeRows())

		payees, err := service.ListPayees(ctx, "user-1")

		require.NoError(t, err)
		require.Len(t, payees, 2)
		assert.Equal(t, "Metro Water", payees[0].Name)
		assert.Equal(t, "021000021", payees[1].RoutingNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cached after first read", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		client, redisMock := redismock.NewClientMock()
		service := NewPayeeService(db, cache.New(client), 10*time.Minute)

		expected, err := json.Marshal([]models.BillPayee{
			{ID: "payee-2", UserID: "user-1", Name: "Metro Water", Category: "WATER", AccountNumber: "88001234", CreatedAt: fixedNow},
			{ID: "payee-1", UserID: "user-1", Name: "City Power", Category: "UTILITIES", AccountNumber: "0012345678", RoutingNumber: "021000021", CreatedAt: fixedNow.Add(-time.Hour)},
		})
		require.NoError(t, err)

		redisMock.ExpectGet("payees:user-1").RedisNil()
		mock.ExpectQuery(listPayeesQuery).WithArgs("user-1").WillReturnRows(payeeRows())
		redisMock.ExpectSet("payees:user-1", string(expected), 10*time.Minute).SetVal("OK")

		first, err := service.ListPayees(ctx, "user-1")
		require.NoError(t, err)
		assert.Len(t, first, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewPayeeService(db, nil, time.Minute)
		mock.ExpectQuery(listPayeesQuery).WillReturnError(errors.New("connection reset"))

		_, err = service.ListPayees(ctx, "user-1")
		assert.ErrorContains(t, err, "list payees")
	})
}

func TestPayeeService_CreatePayee(t *testing.T) {
	ctx := context.Background()
	req := CreatePayeeRequest{Name: " City Power ", Category: "UTILITIES", AccountNumber: "0012345678"}

	t.Run("inserts and invalidates", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		client, redisMock := redismock.NewClientMock()
		service := NewPayeeService(db, cache.New(client), 10*time.Minute)

		mock.ExpectExec("INSERT INTO bill_payees").
			WithArgs(sqlmock.AnyArg(), "user-1", "City Power", "UTILITIES", "0012345678", "", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		redisMock.ExpectDel("payees:user-1").SetVal(1)

		payee, err := service.CreatePayee(ctx, "user-1", req)

		require.NoError(t, err)
		assert.NotEmpty(t, payee.ID)
		assert.Equal(t, "City Power", payee.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("insert failure keeps cache", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		client, redisMock := redismock.NewClientMock()
		service := NewPayeeService(db, cache.New(client), 10*time.Minute)

		mock.ExpectExec("INSERT INTO bill_payees").WillReturnError(errors.New("duplicate key"))

		payee, err := service.CreatePayee(ctx, "user-1", req)

		assert.Nil(t, payee)
		assert.ErrorContains(t, err, "insert payee")
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}
