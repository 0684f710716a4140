package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/url-indexer/internal/errors"
)

func setupBudget(t *testing.T, limit int) (*PublishBudget, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	budget, err := NewPublishBudget(&PublishBudgetConfig{
		Redis:      client,
		DailyLimit: limit,
	})
	require.NoError(t, err)

	return budget, mr
}

func TestNewPublishBudget(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewPublishBudget(nil)
		assert.Error(t, err)
	})

	t.Run("nil redis client", func(t *testing.T) {
		_, err := NewPublishBudget(&PublishBudgetConfig{})
		assert.Error(t, err)
	})

	t.Run("zero limit gets default", func(t *testing.T) {
		budget, _ := setupBudget(t, 0)
		assert.Equal(t, DefaultDailyPublishLimit, budget.Limit())
	})
}

func TestPublishBudgetReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves up to the limit then rejects", func(t *testing.T) {
		budget, _ := setupBudget(t, 3)

		for i := 0; i < 3; i++ {
			require.NoError(t, budget.Reserve(ctx, "app-1"))
		}

		err := budget.Reserve(ctx, "app-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsRateLimit(err))

		// The rejected reservation is not consumed.
		remaining, err := budget.Remaining(ctx, "app-1")
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)
	})

	t.Run("allowances are per app", func(t *testing.T) {
		budget, _ := setupBudget(t, 1)

		require.NoError(t, budget.Reserve(ctx, "app-1"))
		require.NoError(t, budget.Reserve(ctx, "app-2"))
		assert.True(t, apperrors.IsRateLimit(budget.Reserve(ctx, "app-1")))
	})

	t.Run("allowance resets on the next UTC day", func(t *testing.T) {
		budget, _ := setupBudget(t, 1)

		now := time.Date(2026, 8, 27, 23, 0, 0, 0, time.UTC)
		budget.SetClock(func() time.Time { return now })

		require.NoError(t, budget.Reserve(ctx, "app-1"))
		assert.True(t, apperrors.IsRateLimit(budget.Reserve(ctx, "app-1")))

		now = now.Add(2 * time.Hour)
		require.NoError(t, budget.Reserve(ctx, "app-1"))
	})
}

func TestPublishBudgetRemaining(t *testing.T) {
	ctx := context.Background()
	budget, _ := setupBudget(t, 5)

	remaining, err := budget.Remaining(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	require.NoError(t, budget.Reserve(ctx, "app-1"))
	require.NoError(t, budget.Reserve(ctx, "app-1"))

	remaining, err = budget.Remaining(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}
