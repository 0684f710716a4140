package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/url-indexer/internal/types"
)

func setupURLCache(t *testing.T) (*URLCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewURLCache(NewRedisCacheFromClient(client)), mr
}

func TestURLCacheGetMiss(t *testing.T) {
	cache, _ := setupURLCache(t)

	record, err := cache.Get(context.Background(), "app-1", "https://example.com/page")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestURLCacheUpsertAndGet(t *testing.T) {
	cache, _ := setupURLCache(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	written, err := cache.Upsert(ctx, "app-1", "https://example.com/page", types.StatusCrawledNotIndexed)
	require.NoError(t, err)
	assert.Equal(t, now, written.LastCheckedAt)

	got, err := cache.Get(ctx, "app-1", "https://example.com/page")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "app-1", got.AppID)
	assert.Equal(t, "https://example.com/page", got.URL)
	assert.Equal(t, types.StatusCrawledNotIndexed, got.Status)
	assert.True(t, got.LastCheckedAt.Equal(now))
}

func TestURLCacheUpsertAdvancesTimestamp(t *testing.T) {
	cache, _ := setupURLCache(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	_, err := cache.Upsert(ctx, "app-1", "https://example.com/page", types.StatusPending)
	require.NoError(t, err)

	now = now.Add(48 * time.Hour)
	_, err = cache.Upsert(ctx, "app-1", "https://example.com/page", types.StatusPending)
	require.NoError(t, err)

	got, err := cache.Get(ctx, "app-1", "https://example.com/page")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.True(t, got.LastCheckedAt.Equal(now), "timestamp should advance on rewrite")
}

func TestURLCacheKeyIsCaseInsensitiveOnAppID(t *testing.T) {
	cache, _ := setupURLCache(t)
	ctx := context.Background()

	_, err := cache.Upsert(ctx, "App-1", "https://example.com/page", types.StatusPending)
	require.NoError(t, err)

	got, err := cache.Get(ctx, "app-1", "https://example.com/page")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestURLCacheDeleteApp(t *testing.T) {
	cache, _ := setupURLCache(t)
	ctx := context.Background()

	_, err := cache.Upsert(ctx, "app-1", "https://example.com/a", types.StatusPending)
	require.NoError(t, err)
	_, err = cache.Upsert(ctx, "app-1", "https://example.com/b", types.StatusFailed)
	require.NoError(t, err)
	_, err = cache.Upsert(ctx, "app-2", "https://example.com/a", types.StatusPending)
	require.NoError(t, err)

	require.NoError(t, cache.DeleteApp(ctx, "app-1"))

	got, err := cache.Get(ctx, "app-1", "https://example.com/a")
	require.NoError(t, err)
	assert.Nil(t, got)

	kept, err := cache.Get(ctx, "app-2", "https://example.com/a")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestURLCacheDeleteAppEmpty(t *testing.T) {
	cache, _ := setupURLCache(t)

	assert.NoError(t, cache.DeleteApp(context.Background(), "nothing-here"))
}
