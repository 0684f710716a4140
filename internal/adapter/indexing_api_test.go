package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/url-indexer/internal/errors"
)

func newIndexingClient(t *testing.T, handler http.HandlerFunc, sleeps *[]time.Duration) *IndexingClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewIndexingClient(&IndexingClientConfig{
		BaseURL:        srv.URL,
		RequestsPerSec: 1000,
		RPMRetries:     3,
		RPMWaitWindow:  time.Minute,
		Sleep: func(ctx context.Context, d time.Duration) error {
			if sleeps != nil {
				*sleeps = append(*sleeps, d)
			}
			return nil
		},
	})
}

func TestPublish(t *testing.T) {
	t.Run("posts URL_UPDATED notification", func(t *testing.T) {
		var gotPath string
		var gotBody publishRequest
		client := newIndexingClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.Write([]byte(`{}`))
		}, nil)

		err := client.Publish(context.Background(), "tok", "https://example.com/page")
		require.NoError(t, err)
		assert.Equal(t, "/v3/urlNotifications:publish", gotPath)
		assert.Equal(t, "https://example.com/page", gotBody.URL)
		assert.Equal(t, "URL_UPDATED", gotBody.Type)
	})

	t.Run("403 is an access error", func(t *testing.T) {
		client := newIndexingClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}, nil)

		err := client.Publish(context.Background(), "tok", "https://example.com/page")
		require.Error(t, err)
		assert.True(t, apperrors.IsAccess(err))
	})

	t.Run("429 is a rate limit error and does not sleep", func(t *testing.T) {
		var sleeps []time.Duration
		client := newIndexingClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}, &sleeps)

		err := client.Publish(context.Background(), "tok", "https://example.com/page")
		require.Error(t, err)
		assert.True(t, apperrors.IsRateLimit(err))
		assert.Empty(t, sleeps)
	})

	t.Run("500 is a provider error", func(t *testing.T) {
		client := newIndexingClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}, nil)

		err := client.Publish(context.Background(), "tok", "https://example.com/page")
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryProvider))
	})
}

func TestPublishMetadata(t *testing.T) {
	t.Run("returns status on success", func(t *testing.T) {
		client := newIndexingClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v3/urlNotifications/metadata", r.URL.Path)
			assert.Equal(t, "https://example.com/page", r.URL.Query().Get("url"))
			w.Write([]byte(`{}`))
		}, nil)

		status, err := client.PublishMetadata(context.Background(), "tok", "https://example.com/page")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("waits a growing window per rate-limited retry", func(t *testing.T) {
		var sleeps []time.Duration
		client := newIndexingClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}, &sleeps)

		status, err := client.PublishMetadata(context.Background(), "tok", "https://example.com/page")
		require.Error(t, err)
		assert.True(t, apperrors.IsRateLimit(err))
		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, []time.Duration{time.Minute, 2 * time.Minute, 3 * time.Minute}, sleeps)
	})

	t.Run("recovers after a transient rate limit", func(t *testing.T) {
		var sleeps []time.Duration
		calls := 0
		client := newIndexingClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{}`))
		}, &sleeps)

		status, err := client.PublishMetadata(context.Background(), "tok", "https://example.com/page")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, []time.Duration{time.Minute}, sleeps)
	})

	t.Run("non-success below 500 passes through without error", func(t *testing.T) {
		client := newIndexingClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, nil)

		status, err := client.PublishMetadata(context.Background(), "tok", "https://example.com/page")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, status)
	})
}
