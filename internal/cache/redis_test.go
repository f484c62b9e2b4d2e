package cache

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)

	host, portStr, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	c, err := NewRedisCache(host, port, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c, srv
}

type projection struct {
	OrderID string  `json:"orderId"`
	Total   float64 `json:"totalAmount"`
}

func TestCacheSetGet(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	want := projection{OrderID: "ord-1", Total: 20.00}
	require.NoError(t, c.Set(ctx, OrderKey("ord-1"), want))

	var got projection
	require.NoError(t, c.Get(ctx, OrderKey("ord-1"), &got))
	assert.Equal(t, want, got)
}

func TestCacheMissIsRedisNil(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)

	var got projection
	err := c.Get(context.Background(), OrderKey("nope"), &got)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestCacheDelete(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, OrderKey("ord-1"), projection{OrderID: "ord-1"}))
	require.NoError(t, c.Delete(ctx, OrderKey("ord-1")))

	var got projection
	assert.ErrorIs(t, c.Get(ctx, OrderKey("ord-1"), &got), redis.Nil)
}

func TestCacheEntriesExpire(t *testing.T) {
	c, srv := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, OrderKey("ord-1"), projection{OrderID: "ord-1"}))

	srv.FastForward(2 * time.Minute)

	var got projection
	assert.ErrorIs(t, c.Get(ctx, OrderKey("ord-1"), &got), redis.Nil)
}

func TestOrderKey(t *testing.T) {
	assert.Equal(t, "order:abc", OrderKey("abc"))
}
