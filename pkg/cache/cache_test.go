package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Slug  string `json:"slug"`
	Score int    `json:"score"`
}

func TestRedisCache_GetSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, "coinpulse")
	ctx := context.Background()

	mock.ExpectSet("coinpulse:scores:bitcoin", []byte(`{"slug":"bitcoin","score":40}`), time.Minute).SetVal("OK")
	require.NoError(t, c.Set(ctx, "scores:bitcoin", payload{Slug: "bitcoin", Score: 40}, time.Minute))

	mock.ExpectGet("coinpulse:scores:bitcoin").SetVal(`{"slug":"bitcoin","score":40}`)
	var got payload
	require.NoError(t, c.Get(ctx, "scores:bitcoin", &got))
	assert.Equal(t, payload{Slug: "bitcoin", Score: 40}, got)

	mock.ExpectGet("coinpulse:scores:ethereum").RedisNil()
	assert.ErrorIs(t, c.Get(ctx, "scores:ethereum", &got), ErrCacheMiss)

	mock.ExpectUnlink("coinpulse:scores:bitcoin").SetVal(1)
	require.NoError(t, c.Delete(ctx, "scores:bitcoin"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_TryLock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, "coinpulse")
	ctx := context.Background()

	mock.ExpectSetNX("coinpulse:lock:scheduler", "locked", 10*time.Minute).SetVal(true)
	ok, err := c.TryLock(ctx, "scheduler", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectSetNX("coinpulse:lock:scheduler", "locked", 10*time.Minute).SetVal(false)
	ok, err = c.TryLock(ctx, "scheduler", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectDel("coinpulse:lock:scheduler").SetVal(1)
	require.NoError(t, c.Unlock(ctx, "scheduler"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", payload{Slug: "solana", Score: -10}, time.Minute))
	var got payload
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, -10, got.Score)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)

	ok, _ := c.TryLock(ctx, "run", time.Minute)
	assert.True(t, ok)
	ok, _ = c.TryLock(ctx, "run", time.Minute)
	assert.False(t, ok)
	require.NoError(t, c.Unlock(ctx, "run"))
	ok, _ = c.TryLock(ctx, "run", time.Minute)
	assert.True(t, ok)
}

func TestGetOrLoad(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (payload, error) {
		calls++
		return payload{Slug: "bitcoin", Score: calls}, nil
	}

	first, err := GetOrLoad(ctx, c, "h", time.Minute, load)
	require.NoError(t, err)
	second, err := GetOrLoad(ctx, c, "h", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err = GetOrLoad(ctx, c, "other", time.Minute, func(context.Context) (payload, error) {
		return payload{}, boom
	})
	assert.ErrorIs(t, err, boom)
}
