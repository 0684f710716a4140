package types

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var allStatuses = []IndexStatus{
	StatusSubmittedAndIndexed,
	StatusDuplicateWithoutCanonical,
	StatusCrawledNotIndexed,
	StatusDiscoveredNotIndexed,
	StatusPageWithRedirect,
	StatusUnknownToProvider,
	StatusRateLimited,
	StatusForbidden,
	StatusProviderError,
	StatusPending,
	StatusFailed,
}

func genStatusMap() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, len(allStatuses)-1)).Map(func(picks []int) map[string]IndexStatus {
		statuses := make(map[string]IndexStatus, len(picks))
		for i, p := range picks {
			statuses[fmt.Sprintf("https://example.com/page-%d", i)] = allStatuses[p]
		}
		return statuses
	})
}

func TestComputeStatsProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("total equals the number of URLs", prop.ForAll(
		func(statuses map[string]IndexStatus) bool {
			return ComputeStats(statuses).Total == len(statuses)
		},
		genStatusMap(),
	))

	properties.Property("bucket counts never exceed total", prop.ForAll(
		func(statuses map[string]IndexStatus) bool {
			st := ComputeStats(statuses)
			sum := st.Indexed + st.Submitted + st.Crawled + st.Error + st.Unknown
			return sum <= st.Total
		},
		genStatusMap(),
	))

	properties.Property("bucketless statuses account for the gap", prop.ForAll(
		func(statuses map[string]IndexStatus) bool {
			st := ComputeStats(statuses)
			unbucketed := 0
			for _, s := range statuses {
				if Bucket(s) == "" {
					unbucketed++
				}
			}
			sum := st.Indexed + st.Submitted + st.Crawled + st.Error + st.Unknown
			return sum+unbucketed == st.Total
		},
		genStatusMap(),
	))

	properties.Property("every indexable status classifies as error, unknown or crawled", prop.ForAll(
		func(pick int) bool {
			s := IndexableStatuses[pick]
			b := Bucket(s)
			return b == "error" || b == "unknown" || b == "crawled"
		},
		gen.IntRange(0, len(IndexableStatuses)-1),
	))

	properties.TestingRun(t)
}
