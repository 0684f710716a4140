// Package quota tracks the provider's daily publish allowance per app so the
// pipeline can stop submitting before the provider starts rejecting.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/url-indexer/internal/errors"
)

// DefaultDailyPublishLimit mirrors the Indexing API's published default quota.
const DefaultDailyPublishLimit = 200

// PublishBudget is a Redis-backed daily counter of publish calls per app.
// The counter key carries the UTC date, so the budget resets at midnight UTC
// without any sweeper.
type PublishBudget struct {
	client *redis.Client
	limit  int
	now    func() time.Time
}

// PublishBudgetConfig holds configuration for the publish budget.
type PublishBudgetConfig struct {
	// Redis is the client backing the counters. Required.
	Redis *redis.Client

	// DailyLimit is the per-app publish allowance. Default: 200.
	DailyLimit int
}

// Validate checks if the configuration is valid.
func (c *PublishBudgetConfig) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.DailyLimit < 0 {
		return errors.New("daily limit cannot be negative")
	}
	return nil
}

// NewPublishBudget creates a publish budget tracker.
func NewPublishBudget(cfg *PublishBudgetConfig) (*PublishBudget, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	limit := cfg.DailyLimit
	if limit == 0 {
		limit = DefaultDailyPublishLimit
	}

	return &PublishBudget{
		client: cfg.Redis,
		limit:  limit,
		now:    time.Now,
	}, nil
}

// SetClock overrides the clock. Tests only.
func (b *PublishBudget) SetClock(now func() time.Time) {
	b.now = now
}

func (b *PublishBudget) key(appID string) string {
	return fmt.Sprintf("quota:publish:%s:%s", appID, b.now().UTC().Format("2006-01-02"))
}

// Reserve consumes one unit of the app's daily allowance. It fails with a
// rate-limit error when the allowance is exhausted; the unit is not consumed
// in that case.
func (b *PublishBudget) Reserve(ctx context.Context, appID string) error {
	key := b.key(appID)

	count, err := b.client.Incr(ctx, key).Result()
	if err != nil {
		return apperrors.NewLocalFailure("quota reserve", err)
	}
	if count == 1 {
		// First reservation of the day sets the expiry. 48h keeps the key
		// readable for a while after the window closes.
		b.client.Expire(ctx, key, 48*time.Hour)
	}

	if int(count) > b.limit {
		b.client.Decr(ctx, key)
		return apperrors.NewRateLimitError(
			fmt.Sprintf("daily publish quota of %d exhausted for app %s", b.limit, appID))
	}
	return nil
}

// Remaining returns the unused allowance for today.
func (b *PublishBudget) Remaining(ctx context.Context, appID string) (int, error) {
	val, err := b.client.Get(ctx, b.key(appID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return b.limit, nil
		}
		return 0, apperrors.NewLocalFailure("quota read", err)
	}

	remaining := b.limit - val
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Limit returns the configured daily allowance.
func (b *PublishBudget) Limit() int {
	return b.limit
}
