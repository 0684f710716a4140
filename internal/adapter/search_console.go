package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/url-indexer/internal/errors"
	"github.com/url-indexer/internal/logging"
	"github.com/url-indexer/internal/types"
)

const (
	defaultSearchConsoleBaseURL = "https://searchconsole.googleapis.com"
	defaultWebmastersBaseURL    = "https://www.googleapis.com"
)

// SearchConsoleClient talks to the Search Console APIs: URL inspection,
// site listing and sitemap listing. A shared rate limiter paces all
// outbound calls so concurrent batch members cannot burst past the
// provider's tolerance.
type SearchConsoleClient struct {
	inspectionBaseURL string
	webmastersBaseURL string
	client            *http.Client
	limiter           *rate.Limiter
}

// SearchConsoleClientConfig configures a SearchConsoleClient.
type SearchConsoleClientConfig struct {
	InspectionBaseURL string        // defaults to the public endpoint
	WebmastersBaseURL string        // defaults to the public endpoint
	RequestsPerSec    float64       // defaults to 5
	RequestTimeout    time.Duration // defaults to 30s
}

// NewSearchConsoleClient creates a client with the given configuration.
func NewSearchConsoleClient(cfg *SearchConsoleClientConfig) *SearchConsoleClient {
	if cfg == nil {
		cfg = &SearchConsoleClientConfig{}
	}
	inspectionBase := cfg.InspectionBaseURL
	if inspectionBase == "" {
		inspectionBase = defaultSearchConsoleBaseURL
	}
	webmastersBase := cfg.WebmastersBaseURL
	if webmastersBase == "" {
		webmastersBase = defaultWebmastersBaseURL
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &SearchConsoleClient{
		inspectionBaseURL: inspectionBase,
		webmastersBaseURL: webmastersBase,
		client:            &http.Client{Timeout: timeout},
		limiter:           rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

type inspectRequest struct {
	InspectionURL string `json:"inspectionUrl"`
	SiteURL       string `json:"siteUrl"`
}

type inspectResponse struct {
	InspectionResult struct {
		IndexStatusResult struct {
			CoverageState string `json:"coverageState"`
		} `json:"indexStatusResult"`
	} `json:"inspectionResult"`
}

// Inspect checks the indexing status of a single URL. It never retries;
// retry policy belongs to the orchestrator and the publisher's own backoff.
func (c *SearchConsoleClient) Inspect(ctx context.Context, token, siteURL, inspectionURL string) (types.IndexStatus, error) {
	if token == "" {
		return "", apperrors.NewAuthError("access token is empty", nil)
	}
	if siteURL == "" || inspectionURL == "" {
		return "", apperrors.NewInvalidParameterError("url", "site URL and inspection URL are required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, _ := json.Marshal(inspectRequest{InspectionURL: inspectionURL, SiteURL: siteURL})
	endpoint := c.inspectionBaseURL + "/v1/urlInspection/index:inspect"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewProviderError("failed to build inspection request", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperrors.NewProviderError("inspection request failed", 0, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return "", apperrors.NewAccessError("service account has no access to this site")
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", apperrors.NewRateLimitError("inspection request rate limited")
	case resp.StatusCode >= 300:
		return "", apperrors.NewProviderError(
			fmt.Sprintf("inspection failed with status %d", resp.StatusCode), resp.StatusCode, nil)
	}

	var parsed inspectResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", apperrors.NewProviderError("malformed inspection response", resp.StatusCode, err)
	}
	coverage := parsed.InspectionResult.IndexStatusResult.CoverageState
	if coverage == "" {
		return "", apperrors.NewProviderError("inspection response missing coverage state", resp.StatusCode, nil)
	}

	status := MapCoverageState(coverage)
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"url":    inspectionURL,
		"status": status,
	}).Debug("Inspected URL")
	return status, nil
}

type sitesListResponse struct {
	SiteEntry []struct {
		SiteURL string `json:"siteUrl"`
	} `json:"siteEntry"`
}

// Sites lists the site URLs the service account has access to.
func (c *SearchConsoleClient) Sites(ctx context.Context, token string) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.webmastersBaseURL + "/webmasters/v3/sites"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewProviderError("failed to build sites request", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.NewProviderError("sites request failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, apperrors.NewAccessError("service account has no access to any site")
	}
	if resp.StatusCode >= 300 {
		return nil, apperrors.NewProviderError(
			fmt.Sprintf("sites listing failed with status %d", resp.StatusCode), resp.StatusCode, nil)
	}

	var parsed sitesListResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewProviderError("malformed sites response", resp.StatusCode, err)
	}
	if len(parsed.SiteEntry) == 0 {
		return nil, apperrors.NewNotFoundError("sites", "none registered for this service account")
	}

	sites := make([]string, 0, len(parsed.SiteEntry))
	for _, entry := range parsed.SiteEntry {
		if entry.SiteURL != "" {
			sites = append(sites, entry.SiteURL)
		}
	}
	return sites, nil
}

type sitemapsListResponse struct {
	Sitemap []struct {
		Path string `json:"path"`
	} `json:"sitemap"`
}

// SitemapList lists the sitemap paths registered for the given site.
func (c *SearchConsoleClient) SitemapList(ctx context.Context, token, siteURL string) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/webmasters/v3/sites/%s/sitemaps", c.webmastersBaseURL, url.PathEscape(siteURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewProviderError("failed to build sitemaps request", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.NewProviderError("sitemaps request failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, apperrors.NewAccessError("service account has no access to this site's sitemaps")
	}
	if resp.StatusCode >= 300 {
		return nil, apperrors.NewProviderError(
			fmt.Sprintf("sitemap listing failed with status %d", resp.StatusCode), resp.StatusCode, nil)
	}

	var parsed sitemapsListResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewProviderError("malformed sitemaps response", resp.StatusCode, err)
	}

	paths := make([]string, 0, len(parsed.Sitemap))
	for _, sm := range parsed.Sitemap {
		if sm.Path != "" {
			paths = append(paths, sm.Path)
		}
	}
	return paths, nil
}
