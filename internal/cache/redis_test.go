package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robolike/portal/internal/config"
)

type testStruct struct {
	Slug  string
	Views int
}

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
	}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestSetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	expected := testStruct{Slug: "hello", Views: 3}
	require.NoError(t, cache.Set(ctx, "blog:post:hello", expected, time.Minute))

	var actual testStruct
	found, err := cache.Get(ctx, "blog:post:hello", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestGetNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out testStruct
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "key"))
	require.NoError(t, cache.Invalidate(ctx))

	var out string
	found, err := cache.Get(ctx, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidatePrefix(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "blog:list:10:0", []string{"a"}, time.Minute))
	require.NoError(t, cache.Set(ctx, "blog:list:10:10", []string{"b"}, time.Minute))
	require.NoError(t, cache.Set(ctx, "blog:post:a", "a", time.Minute))

	require.NoError(t, cache.InvalidatePrefix(ctx, "blog:list:"))

	assert.False(t, mr.Exists("blog:list:10:0"))
	assert.False(t, mr.Exists("blog:list:10:10"))
	assert.True(t, mr.Exists("blog:post:a"))
}

func TestGetInvalidJSON(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Db.Set(ctx, "bad", []byte("not-json"), time.Minute).Err())

	var out testStruct
	found, err := cache.Get(ctx, "bad", &out)
	assert.False(t, found)
	assert.Error(t, err)
}

func TestHit(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := cache.Hit(ctx, "login:a@b.c", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, time.Minute, mr.TTL("login:a@b.c"))

	mr.FastForward(time.Minute + time.Second)
	got, err := cache.Hit(ctx, "login:a@b.c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "window resets after expiry")
}

func TestInitServerInvalidAddr(t *testing.T) {
	cfg := config.RedisConnection{
		AddressRedis: "127.0.0.1:9999",
		DialTimeout:  100 * time.Millisecond,
	}

	cache, err := InitServer(context.Background(), cfg)
	assert.Nil(t, cache)
	assert.Error(t, err)
}
