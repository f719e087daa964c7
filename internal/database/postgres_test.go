package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestGetConfig(t *testing.T) {
	viper.Reset()
	viper.Set("database.host", "db.internal")
	viper.Set("database.name", "billpay_test")

	config := GetConfig()

	assert.Equal(t, "db.internal", config.Host)
	assert.Equal(t, "5432", config.Port)
	assert.Equal(t, "billpay_test", config.Name)
	assert.Equal(t, 25, config.MaxOpenConns)
	assert.Equal(t, "host=db.internal port=5432 user=postgres password=password dbname=billpay_test sslmode=disable", config.DSN())
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	t.Run("applies schema", func(t *testing.T) {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := Migrate(context.Background(), db)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps failure", func(t *testing.T) {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
			WillReturnError(errors.New("permission denied"))

		err := Migrate(context.Background(), db)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "error applying schema")
	})
}
