package types

import (
	"testing"
	"time"
)

func TestIsIndexable(t *testing.T) {
	tests := []struct {
		status IndexStatus
		want   bool
	}{
		{StatusDiscoveredNotIndexed, true},
		{StatusCrawledNotIndexed, true},
		{StatusUnknownToProvider, true},
		{StatusForbidden, true},
		{StatusProviderError, true},
		{StatusRateLimited, true},
		{StatusSubmittedAndIndexed, false},
		{StatusDuplicateWithoutCanonical, false},
		{StatusPageWithRedirect, false},
		{StatusPending, false},
		{StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := IsIndexable(tt.status); got != tt.want {
				t.Errorf("IsIndexable(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestBucket(t *testing.T) {
	tests := []struct {
		status IndexStatus
		want   string
	}{
		{StatusSubmittedAndIndexed, "indexed"},
		{StatusPending, "submitted"},
		{StatusCrawledNotIndexed, "crawled"},
		{StatusProviderError, "error"},
		{StatusForbidden, "error"},
		{StatusRateLimited, "error"},
		{StatusFailed, "error"},
		{StatusUnknownToProvider, "unknown"},
		{StatusDiscoveredNotIndexed, "unknown"},
		{StatusDuplicateWithoutCanonical, ""},
		{StatusPageWithRedirect, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := Bucket(tt.status); got != tt.want {
				t.Errorf("Bucket(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	statuses := map[string]IndexStatus{
		"a": StatusSubmittedAndIndexed,
		"b": StatusSubmittedAndIndexed,
		"c": StatusPending,
		"d": StatusCrawledNotIndexed,
		"e": StatusFailed,
		"f": StatusDiscoveredNotIndexed,
		"g": StatusPageWithRedirect, // counts toward total only
	}

	got := ComputeStats(statuses)
	want := Stats{Total: 7, Indexed: 2, Submitted: 1, Crawled: 1, Error: 1, Unknown: 1}
	if got != want {
		t.Errorf("ComputeStats() = %+v, want %+v", got, want)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	if got := ComputeStats(nil); got != (Stats{}) {
		t.Errorf("ComputeStats(nil) = %+v, want zero stats", got)
	}
}

func TestCacheRecordIsFresh(t *testing.T) {
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	ttl := 14 * 24 * time.Hour

	tests := []struct {
		name   string
		record *CacheRecord
		want   bool
	}{
		{"nil record", nil, false},
		{"checked 13 days ago", &CacheRecord{LastCheckedAt: now.Add(-13 * 24 * time.Hour)}, true},
		{"checked exactly 14 days ago", &CacheRecord{LastCheckedAt: now.Add(-ttl)}, true},
		{"checked 15 days ago", &CacheRecord{LastCheckedAt: now.Add(-15 * 24 * time.Hour)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.IsFresh(now, ttl); got != tt.want {
				t.Errorf("IsFresh() = %v, want %v", got, tt.want)
			}
		})
	}
}
