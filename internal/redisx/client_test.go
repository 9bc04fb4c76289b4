package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestIdempotency_LookupRemember(t *testing.T) {
	ctx := context.Background()
	mr, rdb := setupTestRedis(t)
	idem := NewIdempotency(rdb)

	_, ok, err := idem.Lookup(ctx, "a@example.com", "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, idem.Remember(ctx, "a@example.com", "k1", "order-1"))
	id, ok, err := idem.Lookup(ctx, "a@example.com", "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "order-1", id)

	_, ok, err = idem.Lookup(ctx, "b@example.com", "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, TTLIdempotency, mr.TTL("idem:checkout:a@example.com:k1"))
	mr.FastForward(TTLIdempotency + time.Second)
	_, ok, err = idem.Lookup(ctx, "a@example.com", "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDedup_ClaimOnce(t *testing.T) {
	ctx := context.Background()
	_, rdb := setupTestRedis(t)
	d := NewDedup(rdb, "loyalty")

	first, err := d.Claim(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.Claim(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, d.Release(ctx, "ev-1"))
	retry, err := d.Claim(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, retry)

	ok, err := Exists(ctx, rdb, "dedup:loyalty:ev-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestJSONCache(t *testing.T) {
	ctx := context.Background()
	mr, rdb := setupTestRedis(t)
	c := NewJSONCache(rdb, time.Minute)

	var got []string
	ok, err := c.Load(ctx, KeyActiveVouchers, &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Store(ctx, KeyActiveVouchers, []string{"A", "B"}))
	ok, err = c.Load(ctx, KeyActiveVouchers, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, got)

	require.NoError(t, c.Invalidate(ctx, KeyActiveVouchers))
	assert.False(t, mr.Exists(KeyActiveVouchers))

	require.NoError(t, mr.Set(KeyActiveVouchers, "{not json"))
	_, err = c.Load(ctx, KeyActiveVouchers, &got)
	assert.Error(t, err)
}
