package cache

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func exerciseService(t *testing.T, svc Service) {
	t.Helper()
	ctx := context.Background()

	var got record
	require.ErrorIs(t, svc.Get(ctx, "admin:config", &got), ErrCacheMiss)

	require.NoError(t, svc.Set(ctx, "admin:config", record{Name: "BTC", Price: 1.5}, 0))
	require.NoError(t, svc.Get(ctx, "admin:config", &got))
	assert.Equal(t, record{Name: "BTC", Price: 1.5}, got)

	ok, err := svc.Exists(ctx, "admin:config")
	require.NoError(t, err)
	assert.True(t, ok)

	var raw string
	require.NoError(t, svc.Set(ctx, "market:last", `{"type":"x"}`, 0))
	require.NoError(t, svc.Get(ctx, "market:last", &raw))
	assert.Equal(t, `{"type":"x"}`, raw)

	require.NoError(t, svc.Delete(ctx, "admin:config", "market:last"))
	ok, err = svc.Exists(ctx, "admin:config", "market:last")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(WithRedisHost(mr.Host()), WithRedisPort(mustPort(t, mr.Port())))
	require.NoError(t, err)
	defer c.Close()

	exerciseService(t, c)
}

func TestRedisCacheStoresKeysVerbatimWithoutPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "admin:config", "{}", 0))
	assert.True(t, mr.Exists("admin:config"))
}

func TestRedisCachePrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "relay")
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "market:last", "{}", 0))
	assert.True(t, mr.Exists("relay:market:last"))
}

func TestRedisCacheURL(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(WithRedisURL("redis://" + mr.Addr() + "/0"))
	require.NoError(t, err)
	defer c.Close()

	exerciseService(t, c)
}

func TestMemoryCache(t *testing.T) {
	exerciseService(t, NewMemoryCache())
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var v string
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(2))
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", "1", 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, c.Set(ctx, "c", "3", 0))

	ok, _ := c.Exists(ctx, "a")
	assert.False(t, ok)
	ok, _ = c.Exists(ctx, "c")
	assert.True(t, ok)
}

func TestFileCache(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	require.NoError(t, err)

	exerciseService(t, c)
}

func TestFileCacheLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	c, err := NewFileCache(dir)
	require.NoError(t, err)

	require.NoError(t, c.Set(context.Background(), "admin:config", map[string]int{"a": 1}, 0))

	b, err := os.ReadFile(filepath.Join(dir, "admin_config.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))
}

func mustPort(t *testing.T, s string) int {
	t.Helper()
	p, err := strconv.Atoi(s)
	require.NoError(t, err)
	return p
}
