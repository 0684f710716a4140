// Package types provides common type definitions for the URL indexer system.
package types

import "time"

// IndexStatus represents the indexing state of a URL as reported by the
// search provider, plus the local states introduced by the pipeline itself.
type IndexStatus string

const (
	// StatusSubmittedAndIndexed means the URL is indexed.
	StatusSubmittedAndIndexed IndexStatus = "Submitted and indexed"
	// StatusDuplicateWithoutCanonical means the page duplicates another page without a user-selected canonical.
	StatusDuplicateWithoutCanonical IndexStatus = "Duplicate without user-selected canonical"
	// StatusCrawledNotIndexed means the page was crawled but not indexed yet.
	StatusCrawledNotIndexed IndexStatus = "Crawled - currently not indexed"
	// StatusDiscoveredNotIndexed means the page is known but has not been crawled.
	StatusDiscoveredNotIndexed IndexStatus = "Discovered - currently not indexed"
	// StatusPageWithRedirect means the URL redirects elsewhere.
	StatusPageWithRedirect IndexStatus = "Page with redirect"
	// StatusUnknownToProvider means the provider has never seen the URL.
	StatusUnknownToProvider IndexStatus = "URL is unknown to provider"
	// StatusRateLimited means the provider throttled the inspection request.
	StatusRateLimited IndexStatus = "RateLimited"
	// StatusForbidden means the service account has no access to the URL's site.
	StatusForbidden IndexStatus = "Forbidden"
	// StatusProviderError means the provider returned an unusable response.
	StatusProviderError IndexStatus = "Error"
	// StatusPending means the URL was submitted for indexing and awaits a re-crawl.
	StatusPending IndexStatus = "Pending"
	// StatusFailed means local processing of the URL failed.
	StatusFailed IndexStatus = "Failed"
)

// IndexableStatuses are the statuses for which a resubmission is worth
// attempting. They also drive the orchestrator's recheck policy.
var IndexableStatuses = []IndexStatus{
	StatusDiscoveredNotIndexed,
	StatusCrawledNotIndexed,
	StatusUnknownToProvider,
	StatusForbidden,
	StatusProviderError,
	StatusRateLimited,
}

// IsIndexable reports whether the status is in the indexable set.
func IsIndexable(s IndexStatus) bool {
	for _, v := range IndexableStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// CacheRecord is the persisted per-(app,url) status snapshot.
type CacheRecord struct {
	AppID         string      `json:"appId"`
	URL           string      `json:"url"`
	Status        IndexStatus `json:"status"`
	LastCheckedAt time.Time   `json:"lastCheckedAt"`
}

// IsFresh reports whether the record was checked within ttl of now. A nil
// record is never fresh; a record exactly ttl old still is.
func (r *CacheRecord) IsFresh(now time.Time, ttl time.Duration) bool {
	if r == nil {
		return false
	}
	return now.Sub(r.LastCheckedAt) <= ttl
}

// IndexResult is the per-URL outcome of a single run. It is ephemeral; the
// persisted forms are BatchStats and the per-URL log lines.
type IndexResult struct {
	URL       string      `json:"url"`
	Status    IndexStatus `json:"status"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Stats is the five-bucket partition of URL outcomes for a run.
type Stats struct {
	Total     int `json:"total"`
	Indexed   int `json:"indexed"`
	Submitted int `json:"submitted"`
	Crawled   int `json:"crawled"`
	Error     int `json:"error"`
	Unknown   int `json:"unknown"`
}

// Bucket returns the stats bucket a status belongs to, or "" when the status
// does not classify into one of the five buckets.
func Bucket(s IndexStatus) string {
	switch s {
	case StatusSubmittedAndIndexed:
		return "indexed"
	case StatusPending:
		return "submitted"
	case StatusCrawledNotIndexed:
		return "crawled"
	case StatusProviderError, StatusForbidden, StatusRateLimited, StatusFailed:
		return "error"
	case StatusUnknownToProvider, StatusDiscoveredNotIndexed:
		return "unknown"
	default:
		return ""
	}
}

// ComputeStats folds a status map into the five-bucket partition.
// Total counts every URL with a recorded status, including ones whose
// current status does not classify into a bucket yet.
func ComputeStats(statuses map[string]IndexStatus) Stats {
	st := Stats{Total: len(statuses)}
	for _, s := range statuses {
		switch Bucket(s) {
		case "indexed":
			st.Indexed++
		case "submitted":
			st.Submitted++
		case "crawled":
			st.Crawled++
		case "error":
			st.Error++
		case "unknown":
			st.Unknown++
		}
	}
	return st
}

// BatchStats is the persisted summary row for one run.
type BatchStats struct {
	BatchID   string    `json:"batchId"`
	AppID     string    `json:"appId"`
	Stats     Stats     `json:"stats"`
	Timestamp time.Time `json:"timestamp"`
}

// App is a registered site plus its service-account credential, the unit of
// provider authorization.
type App struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Domain      string    `json:"domain"`
	ClientEmail string    `json:"clientEmail"`
	PrivateKey  string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LogLine is one persisted log entry of a run, owned by the log store.
type LogLine struct {
	BatchID   string      `json:"batchId"`
	AppID     string      `json:"appId"`
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	URL       string      `json:"url,omitempty"`
	Status    IndexStatus `json:"status,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
