package service

import (
	"sync"

	"github.com/url-indexer/internal/types"
)

// RunState is the mutable, resumable state of one indexing run. It is shared
// between the orchestrator and the job registry: a reconnecting client's
// request re-enters the orchestrator with the same RunState, so URLs already
// processed are not reprocessed. Batch members run on separate goroutines,
// hence the lock.
type RunState struct {
	mu           sync.Mutex
	batchID      string
	processed    map[string]bool
	statuses     map[string]types.IndexStatus
	lastProgress float64
}

// NewRunState creates the state for a fresh run.
func NewRunState(batchID string) *RunState {
	return &RunState{
		batchID:   batchID,
		processed: make(map[string]bool),
		statuses:  make(map[string]types.IndexStatus),
	}
}

// BatchID returns the run's batch identifier.
func (r *RunState) BatchID() string {
	return r.batchID
}

// SetStatus records the current status for a URL.
func (r *RunState) SetStatus(url string, status types.IndexStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[url] = status
}

// Status returns the recorded status for a URL, if any.
func (r *RunState) Status(url string) (types.IndexStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.statuses[url]
	return s, ok
}

// MarkProcessed marks a URL as terminally handled for this run.
func (r *RunState) MarkProcessed(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed[url] = true
}

// IsProcessed reports whether a URL has already been handled.
func (r *RunState) IsProcessed(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed[url]
}

// ProcessedCount returns the number of terminally handled URLs.
func (r *RunState) ProcessedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processed)
}

// SetProgress records the last emitted progress percentage.
func (r *RunState) SetProgress(p float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastProgress = p
}

// Progress returns the last emitted progress percentage.
func (r *RunState) Progress() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastProgress
}

// Stats folds the recorded statuses into the five-bucket partition.
func (r *RunState) Stats() types.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.ComputeStats(r.statuses)
}
