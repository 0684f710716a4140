package adapter

import (
	"testing"

	"github.com/url-indexer/internal/types"
)

func TestMapCoverageState(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want types.IndexStatus
	}{
		{"indexed enum form", "URL_IS_ON_GOOGLE", types.StatusSubmittedAndIndexed},
		{"indexed human form", "Submitted and indexed", types.StatusSubmittedAndIndexed},
		{"duplicate without canonical", "DUPLICATE_WITHOUT_USER_SELECTED_CANONICAL", types.StatusDuplicateWithoutCanonical},
		{"crawled enum form", "CRAWLED_CURRENTLY_NOT_INDEXED", types.StatusCrawledNotIndexed},
		{"crawled human form", "Crawled - currently not indexed", types.StatusCrawledNotIndexed},
		{"discovered enum form", "DISCOVERED_CURRENTLY_NOT_INDEXED", types.StatusDiscoveredNotIndexed},
		{"discovered human form", "Discovered - currently not indexed", types.StatusDiscoveredNotIndexed},
		{"redirect", "PAGE_WITH_REDIRECT", types.StatusPageWithRedirect},
		{"unknown enum form", "URL_IS_UNKNOWN_TO_GOOGLE", types.StatusUnknownToProvider},
		{"unknown human form", "URL is unknown to Google", types.StatusUnknownToProvider},
		{"rate limited", "RATE_LIMITED", types.StatusRateLimited},
		{"forbidden", "FORBIDDEN", types.StatusForbidden},
		{"error", "ERROR", types.StatusProviderError},
		{"unrecognized state", "SOMETHING_NEW", types.StatusProviderError},
		{"empty state", "", types.StatusProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapCoverageState(tt.raw); got != tt.want {
				t.Errorf("MapCoverageState(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
