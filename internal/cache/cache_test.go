package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

type payeeView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestGetOrSet(t *testing.T) {
	ctx := context.Background()
	ttl := 10 * time.Minute

	t.Run("miss fetches and stores", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		c := New(client)

		mock.ExpectGet("payees:u1").RedisNil()
		mock.ExpectSet("payees:u1", `[{"id":"p1","name":"City Power"}]`, ttl).SetVal("OK")

		calls := 0
		got, err := GetOrSet(ctx, c, "payees:u1", ttl, func(context.Context) ([]payeeView, error) {
			calls++
			return []payeeView{{ID: "p1", Name: "City Power"}}, nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, "City Power", got[0].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("hit skips fetch", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		c := New(client)

		mock.ExpectGet("payees:u1").SetVal(`[{"id":"p1","name":"City Power"}]`)

		got, err := GetOrSet(ctx, c, "payees:u1", ttl, func(context.Context) ([]payeeView, error) {
			t.Fatal("fetch must not run on a hit")
			return nil, nil
		})

		assert.NoError(t, err)
		assert.Equal(t, []payeeView{{ID: "p1", Name: "City Power"}}, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis error passes through", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		c := New(client)

		mock.ExpectGet("threshold").SetErr(errors.New("connection refused"))

		got, err := GetOrSet(ctx, c, "threshold", ttl, func(context.Context) (string, error) {
			return "5000", nil
		})

		assert.NoError(t, err)
		assert.Equal(t, "5000", got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt entry is refetched", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		c := New(client)

		mock.ExpectGet("threshold").SetVal("{not json")
		mock.ExpectSet("threshold", `"5000"`, ttl).SetVal("OK")

		got, err := GetOrSet(ctx, c, "threshold", ttl, func(context.Context) (string, error) {
			return "5000", nil
		})

		assert.NoError(t, err)
		assert.Equal(t, "5000", got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("set failure still returns value", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		c := New(client)

		mock.ExpectGet("threshold").RedisNil()
		mock.ExpectSet("threshold", `"5000"`, ttl).SetErr(errors.New("READONLY"))

		got, err := GetOrSet(ctx, c, "threshold", ttl, func(context.Context) (string, error) {
			return "5000", nil
		})

		assert.NoError(t, err)
		assert.Equal(t, "5000", got)
	})

	t.Run("fetch error is not cached", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		c := New(client)

		mock.ExpectGet("threshold").RedisNil()

		_, err := GetOrSet(ctx, c, "threshold", ttl, func(context.Context) (string, error) {
			return "", errors.New("db down")
		})

		assert.EqualError(t, err, "db down")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil client", func(t *testing.T) {
		for _, c := range []*Cache{nil, New(nil)} {
			got, err := GetOrSet(ctx, c, "threshold", ttl, func(context.Context) (int, error) {
				return 42, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 42, got)
		}
	})
}

func TestInvalidate(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client)

	mock.ExpectDel("payees:u1").SetVal(1)
	c.Invalidate(context.Background(), "payees:u1")
	assert.NoError(t, mock.ExpectationsWereMet())

	// no panic without redis
	New(nil).Invalidate(context.Background(), "payees:u1")
}
