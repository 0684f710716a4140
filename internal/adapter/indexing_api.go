package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/url-indexer/internal/errors"
	"github.com/url-indexer/internal/logging"
	"github.com/url-indexer/internal/retry"
)

const defaultIndexingBaseURL = "https://indexing.googleapis.com"

// IndexingClient talks to the Indexing API: publishing URL notifications and
// reading publish metadata. The metadata call carries its own bounded
// rate-limit backoff; Publish does not sleep, leaving retry policy to the
// caller.
type IndexingClient struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	rpmRetries int
	rpmWindow  time.Duration
	sleep      retry.Sleeper
}

// IndexingClientConfig configures an IndexingClient.
type IndexingClientConfig struct {
	BaseURL        string
	RequestsPerSec float64       // defaults to 5
	RequestTimeout time.Duration // defaults to 30s
	RPMRetries     int           // metadata rate-limit retries, defaults to 3
	RPMWaitWindow  time.Duration // base wait per exhausted retry, defaults to 60s
	Sleep          retry.Sleeper // injectable for tests
}

// NewIndexingClient creates a client with the given configuration.
func NewIndexingClient(cfg *IndexingClientConfig) *IndexingClient {
	if cfg == nil {
		cfg = &IndexingClientConfig{}
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultIndexingBaseURL
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.RPMRetries
	if retries == 0 {
		retries = 3
	}
	window := cfg.RPMWaitWindow
	if window == 0 {
		window = 60 * time.Second
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = retry.DefaultSleeper
	}

	return &IndexingClient{
		baseURL:    base,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		rpmRetries: retries,
		rpmWindow:  window,
		sleep:      sleep,
	}
}

type publishRequest struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Publish submits a URL notification of type URL_UPDATED. It fails with a
// typed error on 403/429/other non-2xx and never sleeps.
func (c *IndexingClient) Publish(ctx context.Context, token, pageURL string) error {
	if token == "" {
		return apperrors.NewAuthError("access token is empty", nil)
	}
	if pageURL == "" {
		return apperrors.NewInvalidParameterError("url", "url is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, _ := json.Marshal(publishRequest{URL: pageURL, Type: "URL_UPDATED"})
	endpoint := c.baseURL + "/v3/urlNotifications:publish"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewProviderError("failed to build publish request", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.NewProviderError("publish request failed", 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return apperrors.NewAccessError("service account has no access to this site")
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.NewRateLimitError("publish request rate limited")
	case resp.StatusCode >= 300:
		return apperrors.NewProviderError(
			fmt.Sprintf("publish failed with status %d", resp.StatusCode), resp.StatusCode, nil)
	}

	logging.FromContext(ctx).WithField("url", pageURL).Debug("Submitted URL for indexing")
	return nil
}

// PublishMetadata fetches notification metadata for a URL, returning the HTTP
// status code. On 429 it waits (retries - remaining + 1) * window and retries
// until the bounded budget is exhausted.
func (c *IndexingClient) PublishMetadata(ctx context.Context, token, pageURL string) (int, error) {
	remaining := c.rpmRetries
	for {
		status, err := c.publishMetadataOnce(ctx, token, pageURL)
		if err == nil || !apperrors.IsRateLimit(err) {
			return status, err
		}
		if remaining <= 0 {
			return status, err
		}

		wait := time.Duration(c.rpmRetries-remaining+1) * c.rpmWindow
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"url":       pageURL,
			"remaining": remaining,
			"wait":      wait,
		}).Warn("Metadata request rate limited, backing off")

		if err := c.sleep(ctx, wait); err != nil {
			return status, err
		}
		remaining--
	}
}

func (c *IndexingClient) publishMetadataOnce(ctx context.Context, token, pageURL string) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	endpoint := fmt.Sprintf("%s/v3/urlNotifications/metadata?url=%s", c.baseURL, url.QueryEscape(pageURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, apperrors.NewProviderError("failed to build metadata request", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, apperrors.NewProviderError("metadata request failed", 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return resp.StatusCode, apperrors.NewAccessError("service account has no access to this site")
	case resp.StatusCode == http.StatusTooManyRequests:
		return resp.StatusCode, apperrors.NewRateLimitError("metadata request rate limited")
	case resp.StatusCode >= 500:
		return resp.StatusCode, apperrors.NewProviderError(
			fmt.Sprintf("metadata request failed with status %d", resp.StatusCode), resp.StatusCode, nil)
	}
	return resp.StatusCode, nil
}
