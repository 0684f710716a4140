package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/url-indexer/internal/errors"
	"github.com/url-indexer/internal/types"
)

// URLCache is the cache gateway for per-(app,url) status records. It is a
// plain get/upsert store: staleness filtering is a caller decision, so the
// orchestrator's 14-day recheck TTL and the 24-hour existence TTL can share
// one gateway. Records are never expired by the gateway itself; deletion is
// an app-lifecycle concern.
type URLCache struct {
	redis *RedisCache
	now   func() time.Time
}

// NewURLCache creates a URL cache gateway.
func NewURLCache(redis *RedisCache) *URLCache {
	return &URLCache{redis: redis, now: time.Now}
}

// SetClock overrides the clock. Tests only.
func (c *URLCache) SetClock(now func() time.Time) {
	c.now = now
}

func cacheKey(appID, url string) string {
	return fmt.Sprintf("urlcache:%s:%s", strings.ToLower(appID), url)
}

// Get returns the cache record for (appID, url), or nil when absent.
// Store failures surface as LocalFailure so the orchestrator can downgrade
// them to a per-URL Failed status.
func (c *URLCache) Get(ctx context.Context, appID, url string) (*types.CacheRecord, error) {
	data, err := c.redis.Get(ctx, cacheKey(appID, url))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, apperrors.NewLocalFailure("cache read", err)
	}

	var record types.CacheRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, apperrors.NewLocalFailure("cache decode", err)
	}
	return &record, nil
}

// Upsert writes the status for (appID, url) and refreshes LastCheckedAt.
// Idempotent for identical status; the timestamp always advances.
func (c *URLCache) Upsert(ctx context.Context, appID, url string, status types.IndexStatus) (*types.CacheRecord, error) {
	record := &types.CacheRecord{
		AppID:         appID,
		URL:           url,
		Status:        status,
		LastCheckedAt: c.now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, apperrors.NewLocalFailure("cache encode", err)
	}

	// No key TTL: staleness is judged against LastCheckedAt by the caller.
	if err := c.redis.Set(ctx, cacheKey(appID, url), data, 0); err != nil {
		return nil, apperrors.NewLocalFailure("cache write", err)
	}
	return record, nil
}

// DeleteApp removes every cache record belonging to an app. Called when the
// app itself is deleted.
func (c *URLCache) DeleteApp(ctx context.Context, appID string) error {
	pattern := fmt.Sprintf("urlcache:%s:*", strings.ToLower(appID))
	keys, err := c.redis.Keys(ctx, pattern)
	if err != nil {
		return apperrors.NewLocalFailure("cache scan", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...); err != nil {
		return apperrors.NewLocalFailure("cache delete", err)
	}
	return nil
}
