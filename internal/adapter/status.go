package adapter

import "github.com/url-indexer/internal/types"

// coverageStateMap maps provider coverage-state strings to internal statuses.
// Both the enum-style and human-readable spellings appear in responses
// depending on the API surface.
var coverageStateMap = map[string]types.IndexStatus{
	"URL_IS_ON_GOOGLE":                          types.StatusSubmittedAndIndexed,
	"Submitted and indexed":                     types.StatusSubmittedAndIndexed,
	"DUPLICATE_WITHOUT_USER_SELECTED_CANONICAL": types.StatusDuplicateWithoutCanonical,
	"CRAWLED_CURRENTLY_NOT_INDEXED":             types.StatusCrawledNotIndexed,
	"Crawled - currently not indexed":           types.StatusCrawledNotIndexed,
	"DISCOVERED_CURRENTLY_NOT_INDEXED":          types.StatusDiscoveredNotIndexed,
	"Discovered - currently not indexed":        types.StatusDiscoveredNotIndexed,
	"PAGE_WITH_REDIRECT":                        types.StatusPageWithRedirect,
	"URL_IS_UNKNOWN_TO_GOOGLE":                  types.StatusUnknownToProvider,
	"URL is unknown to Google":                  types.StatusUnknownToProvider,
	"RATE_LIMITED":                              types.StatusRateLimited,
	"FORBIDDEN":                                 types.StatusForbidden,
	"ERROR":                                     types.StatusProviderError,
}

// MapCoverageState converts a raw provider status string to an IndexStatus.
// Unrecognized strings map to StatusProviderError.
func MapCoverageState(raw string) types.IndexStatus {
	if status, ok := coverageStateMap[raw]; ok {
		return status
	}
	return types.StatusProviderError
}
