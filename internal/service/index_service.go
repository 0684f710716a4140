// Package service implements the batch orchestrator: the state machine that
// takes a URL set, applies the cache/recheck policy, fans out status checks
// with bounded concurrency, decides resubmission, aggregates statistics and
// emits progress events.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/url-indexer/internal/adapter"
	apperrors "github.com/url-indexer/internal/errors"
	"github.com/url-indexer/internal/logging"
	"github.com/url-indexer/internal/retry"
	"github.com/url-indexer/internal/sse"
	"github.com/url-indexer/internal/types"
)

// CacheGateway is the read/write interface to the per-(app,url) status cache.
type CacheGateway interface {
	Get(ctx context.Context, appID, url string) (*types.CacheRecord, error)
	Upsert(ctx context.Context, appID, url string, status types.IndexStatus) (*types.CacheRecord, error)
}

// StatsStore persists the per-run summary row, keyed by batch ID.
type StatsStore interface {
	Upsert(ctx context.Context, stats *types.BatchStats) error
}

// PublishReserver gates submissions against the daily publish allowance.
type PublishReserver interface {
	Reserve(ctx context.Context, appID string) error
}

// EventSink receives run events. Implementations fan them out to the client
// stream and, when log saving is on, to the log store.
type EventSink interface {
	Event(typ sse.EventType, message string, data map[string]interface{})
	URLEvent(typ sse.EventType, message, url string, status types.IndexStatus)
}

// IndexServiceConfig configures the orchestrator.
type IndexServiceConfig struct {
	BatchSize int           // URLs in flight per batch, default 10
	CacheTTL  time.Duration // staleness bound for rechecking indexable statuses, default 14 days
	Sleep     retry.Sleeper // wait dependency for the stats-upsert retry; DefaultSleeper when nil
}

// IndexService orchestrates indexing runs.
type IndexService struct {
	tokens    adapter.TokenSource
	verifier  adapter.SiteVerifier
	sitemaps  adapter.SitemapSource
	inspector adapter.Inspector
	publisher adapter.Publisher
	cache     CacheGateway
	stats     StatsStore
	budget    PublishReserver // nil means unlimited

	batchSize int
	cacheTTL  time.Duration
	now       func() time.Time
	sleep     retry.Sleeper
}

// NewIndexService creates an orchestrator.
func NewIndexService(
	tokens adapter.TokenSource,
	verifier adapter.SiteVerifier,
	sitemaps adapter.SitemapSource,
	inspector adapter.Inspector,
	publisher adapter.Publisher,
	cache CacheGateway,
	stats StatsStore,
	budget PublishReserver,
	cfg *IndexServiceConfig,
) *IndexService {
	if cfg == nil {
		cfg = &IndexServiceConfig{}
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 14 * 24 * time.Hour
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = retry.DefaultSleeper
	}

	return &IndexService{
		tokens:    tokens,
		verifier:  verifier,
		sitemaps:  sitemaps,
		inspector: inspector,
		publisher: publisher,
		cache:     cache,
		stats:     stats,
		budget:    budget,
		batchSize: batchSize,
		cacheTTL:  cacheTTL,
		now:       time.Now,
		sleep:     sleep,
	}
}

// SetClock overrides the clock used by the recheck policy. Tests only.
func (s *IndexService) SetClock(now func() time.Time) {
	s.now = now
}

// Run executes one indexing run end to end: token acquisition, site
// verification, URL discovery when no explicit URLs were given, then the
// batched pipeline. Run-level failures return an error so the caller's
// retry-with-backoff can re-invoke the whole run against the same RunState.
func (s *IndexService) Run(ctx context.Context, app *types.App, rawURLs []string, state *RunState, events EventSink) error {
	events.Event(sse.EventInfo, "Starting run", nil)

	token, err := s.tokens.AccessToken(ctx, app.ClientEmail, app.PrivateKey)
	if err != nil {
		return apperrors.NewAuthError("failed to acquire access token", err)
	}
	if token == "" {
		return apperrors.NewAuthError("failed to acquire access token", nil)
	}
	events.Event(sse.EventInfo, "Access token acquired", nil)

	siteURL, err := s.verifier.CheckSiteURL(ctx, token, app.Domain)
	if err != nil {
		return err
	}
	events.Event(sse.EventInfo, fmt.Sprintf("Verified site access: %s", siteURL), nil)

	var urls []string
	if len(rawURLs) > 0 {
		urls = adapter.NormalizeCustomURLs(siteURL, rawURLs)
		events.Event(sse.EventInfo, fmt.Sprintf("Using %d provided URLs", len(urls)), nil)
	} else {
		events.Event(sse.EventInfo, "Discovering URLs from sitemaps", nil)
		sitemaps, pages, err := s.sitemaps.SitemapPages(ctx, token, siteURL)
		if err != nil {
			return err
		}
		if len(sitemaps) == 0 {
			return apperrors.NewNotFoundError("sitemap", siteURL)
		}
		urls = pages
		events.Event(sse.EventInfo, fmt.Sprintf("Found %d URLs across %d sitemaps", len(urls), len(sitemaps)), nil)
	}

	return s.IndexURLs(ctx, token, siteURL, app.ID, urls, state, events)
}

// IndexURLs runs the batched pipeline over the given URL set. URLs already
// marked processed in state are skipped, which makes the call resumable.
func (s *IndexService) IndexURLs(ctx context.Context, token, siteURL, appID string, urls []string, state *RunState, events EventSink) error {
	urls = dedupe(urls)
	total := len(urls)

	// Empty input short-circuits: zero stats row, terminal event, no
	// provider contact.
	if total == 0 {
		return s.finish(ctx, appID, state, events)
	}

	var remaining []string
	for _, u := range urls {
		if !state.IsProcessed(u) {
			remaining = append(remaining, u)
		}
	}
	if len(remaining) == 0 {
		return s.finish(ctx, appID, state, events)
	}

	events.Event(sse.EventInfo, fmt.Sprintf("Processing site: %s", siteURL), nil)
	events.Event(sse.EventInfo, fmt.Sprintf("%d URLs to process", len(remaining)), nil)

	batches := (len(remaining) + s.batchSize - 1) / s.batchSize

	for i := 0; i < len(remaining); i += s.batchSize {
		// A cancelled run must not masquerade as per-URL failures: bail out
		// so the registry keeps the job state for a reconnect.
		if err := ctx.Err(); err != nil {
			return err
		}

		end := i + s.batchSize
		if end > len(remaining) {
			end = len(remaining)
		}
		batch := remaining[i:end]
		batchNumber := i/s.batchSize + 1

		events.Event(sse.EventInfo, fmt.Sprintf("Processing batch %d of %d", batchNumber, batches), nil)

		// Fan out the batch; fan in before the next one starts so total
		// concurrency stays bounded by the batch size.
		runErrs := make([]error, len(batch))
		var wg sync.WaitGroup
		for j, u := range batch {
			wg.Add(1)
			go func(idx int, url string) {
				defer wg.Done()
				runErrs[idx] = s.processURL(ctx, token, siteURL, appID, url, state, events)
			}(j, u)
		}
		wg.Wait()

		// A run-level error (publish throttled past its bounded backoff)
		// aborts the run so the registry's retry can pick it back up; the
		// affected URLs stay unprocessed.
		for _, err := range runErrs {
			if err != nil {
				return err
			}
		}

		if batchNumber < batches {
			progress := float64(state.ProcessedCount()) / float64(total) * 100
			state.SetProgress(progress)
			events.Event(sse.EventProgress, fmt.Sprintf("Progress: %.1f%%", progress), map[string]interface{}{
				"progress": progress,
				"stats":    state.Stats(),
			})
		}
	}

	return s.finish(ctx, appID, state, events)
}

// finish persists the final stats row and emits the terminal event.
func (s *IndexService) finish(ctx context.Context, appID string, state *RunState, events EventSink) error {
	finalStats := state.Stats()

	row := &types.BatchStats{
		BatchID:   state.BatchID(),
		AppID:     appID,
		Stats:     finalStats,
		Timestamp: s.now().UTC(),
	}
	// The run itself succeeded; a flaky store gets a few quick retries,
	// and losing the summary row after that is worth a warning, not a
	// retry of the whole run.
	result := retry.WithExponentialBackoff(ctx, &retry.Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Sleep:        s.sleep,
	}, func(ctx context.Context, attempt int) error {
		return s.stats.Upsert(ctx, row)
	})
	if !result.Success {
		logging.FromContext(ctx).WithError(result.LastError).Warn("Failed to persist batch stats")
		events.Event(sse.EventWarning, "Failed to persist run statistics", nil)
	}

	state.SetProgress(100)
	events.Event(sse.EventSuccess, "Run completed", map[string]interface{}{
		"progress":    float64(100),
		"stats":       finalStats,
		"isCompleted": true,
	})
	return nil
}

// shouldRecheck applies the recheck policy: check when the cache entry is
// missing, has no status, or carries an indexable status older than the TTL.
func (s *IndexService) shouldRecheck(record *types.CacheRecord) bool {
	if record == nil || record.Status == "" {
		return true
	}
	if !types.IsIndexable(record.Status) {
		return false
	}
	return !record.IsFresh(s.now(), s.cacheTTL)
}

// processURL drives one URL through the per-URL state machine. Per-URL
// failures are downgraded to StatusFailed; a publish rate limit or a
// cancelled context escapes as a run-level error.
func (s *IndexService) processURL(ctx context.Context, token, siteURL, appID, url string, state *RunState, events EventSink) error {
	events.URLEvent(sse.EventInfo, fmt.Sprintf("Processing %s", url), url, "")

	status, err := s.resolveStatus(ctx, token, siteURL, appID, url, events)
	if err != nil {
		// Errors caused by the run being cancelled are not this URL's
		// fault: leave it unprocessed for the resume.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		state.SetStatus(url, types.StatusFailed)
		state.MarkProcessed(url)
		events.URLEvent(sse.EventError, fmt.Sprintf("Processing failed: %v", err), url, types.StatusFailed)
		return nil
	}
	state.SetStatus(url, status)

	switch status {
	case types.StatusSubmittedAndIndexed:
		events.URLEvent(sse.EventSuccess, fmt.Sprintf("Indexed: %s", url), url, status)
	case types.StatusForbidden:
		events.URLEvent(sse.EventError, fmt.Sprintf("No site access for %s", url), url, status)
	case types.StatusRateLimited:
		events.URLEvent(sse.EventError, fmt.Sprintf("Rate limited checking %s", url), url, status)
	case types.StatusProviderError:
		events.URLEvent(sse.EventError, fmt.Sprintf("Provider error for %s", url), url, status)
	}

	if types.IsIndexable(status) {
		if err := s.submit(ctx, token, appID, url, status, state, events); err != nil {
			return err
		}
	}

	state.MarkProcessed(url)
	return nil
}

// resolveStatus returns the URL's current status, from cache when fresh
// enough, otherwise from the provider, updating the cache on the way out.
func (s *IndexService) resolveStatus(ctx context.Context, token, siteURL, appID, url string, events EventSink) (types.IndexStatus, error) {
	record, err := s.cache.Get(ctx, appID, url)
	if err != nil {
		// Cache unavailability is fatal for this URL only.
		return "", err
	}

	if !s.shouldRecheck(record) {
		events.URLEvent(sse.EventInfo, fmt.Sprintf("Using cached status for %s", url), url, record.Status)
		return record.Status, nil
	}

	status, err := s.inspector.Inspect(ctx, token, siteURL, url)
	if err != nil {
		return "", err
	}

	if _, err := s.cache.Upsert(ctx, appID, url, status); err != nil {
		return "", err
	}
	events.URLEvent(sse.EventInfo, fmt.Sprintf("Cached status for %s", url), url, status)
	return status, nil
}

// submit requests indexing for a URL with an indexable status. A rate limit
// from the publisher or an exhausted daily quota propagates as a run-level
// error so the whole run retries once the throttle clears; a 403 keeps the
// checked status; anything else marks the URL Failed.
func (s *IndexService) submit(ctx context.Context, token, appID, url string, checked types.IndexStatus, state *RunState, events EventSink) error {
	if s.budget != nil {
		if err := s.budget.Reserve(ctx, appID); err != nil {
			if apperrors.IsRateLimit(err) {
				return err
			}
			// Quota store trouble should not block submissions.
			logging.FromContext(ctx).WithError(err).Warn("Publish budget unavailable")
		}
	}

	events.URLEvent(sse.EventInfo, fmt.Sprintf("Submitting %s for indexing", url), url, checked)

	if err := s.publisher.Publish(ctx, token, url); err != nil {
		switch {
		case apperrors.IsRateLimit(err):
			events.URLEvent(sse.EventError, fmt.Sprintf("Submission rate limited: %s", url), url, checked)
			return err
		case apperrors.IsAccess(err):
			events.URLEvent(sse.EventError, fmt.Sprintf("Submission forbidden: %s", url), url, checked)
			return nil
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			state.SetStatus(url, types.StatusFailed)
			events.URLEvent(sse.EventError, fmt.Sprintf("Submission failed: %v", err), url, types.StatusFailed)
			return nil
		}
	}

	state.SetStatus(url, types.StatusPending)
	events.URLEvent(sse.EventSuccess, fmt.Sprintf("Submitted for indexing: %s", url), url, types.StatusPending)
	return nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
