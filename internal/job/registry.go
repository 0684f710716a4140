// Package job manages indexing runs across client connections. Runs are keyed
// by a client-supplied request ID, so a client that loses its connection can
// reconnect with the same ID and resume the run where it left off instead of
// reprocessing URLs. Failed runs are retried with exponential backoff before
// the job is abandoned.
package job

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/url-indexer/internal/logging"
	"github.com/url-indexer/internal/retry"
	"github.com/url-indexer/internal/service"
	"github.com/url-indexer/internal/sse"
	"github.com/url-indexer/internal/types"
)

// Runner executes one indexing run against a resumable state.
type Runner interface {
	Run(ctx context.Context, app *types.App, urls []string, state *service.RunState, events service.EventSink) error
}

// Config configures the registry's retry behavior.
type Config struct {
	// MaxRetries is the number of re-runs after the first failure. Default: 3.
	MaxRetries int

	// RetryDelay is the delay before the first retry. Default: 1s.
	RetryDelay time.Duration

	// BackoffFactor multiplies the delay per retry. Default: 1.5.
	BackoffFactor float64

	// Sleep is the sleep dependency; DefaultSleeper when nil.
	Sleep retry.Sleeper
}

// jobState is one live run. The run lock serializes executions for a single
// request ID, so a client that reconnects while its run is still in flight
// waits for the in-flight execution instead of racing it.
type jobState struct {
	run        sync.Mutex
	state      *service.RunState
	retryCount int
	started    bool
}

// Registry tracks live runs by request ID.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*jobState

	runner        Runner
	logs          LogAppender
	maxRetries    int
	retryDelay    time.Duration
	backoffFactor float64
	sleep         retry.Sleeper
}

// NewRegistry creates a job registry.
func NewRegistry(runner Runner, logs LogAppender, cfg *Config) *Registry {
	if cfg == nil {
		cfg = &Config{}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}
	backoffFactor := cfg.BackoffFactor
	if backoffFactor == 0 {
		backoffFactor = 1.5
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = retry.DefaultSleeper
	}

	return &Registry{
		jobs:          make(map[string]*jobState),
		runner:        runner,
		logs:          logs,
		maxRetries:    maxRetries,
		retryDelay:    retryDelay,
		backoffFactor: backoffFactor,
		sleep:         sleep,
	}
}

// ActiveJobs returns the number of live runs.
func (r *Registry) ActiveJobs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// acquire returns the job for a request ID, creating it when absent. The
// second result reports whether the job already existed.
func (r *Registry) acquire(requestID string) (*jobState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[requestID]; ok {
		return j, true
	}
	j := &jobState{state: service.NewRunState(uuid.New().String())}
	r.jobs[requestID] = j
	return j, false
}

func (r *Registry) release(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, requestID)
}

// Execute runs (or resumes) the indexing job for a request ID, streaming
// events to the given stream. A reconnecting client first receives a snapshot
// of the run so far, then the run continues over the unprocessed URLs. On
// failure the run is retried with exponential backoff up to the configured
// limit; the job is removed on success or once retries are exhausted, and
// kept when the client's context is cancelled so a reconnect can resume.
// The returned batch ID identifies the run's statistics and log lines.
func (r *Registry) Execute(ctx context.Context, app *types.App, urls []string, saveLog bool, requestID string, stream *sse.Stream) (string, error) {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"requestId": requestID,
		"appId":     app.ID,
	})

	j, existed := r.acquire(requestID)

	j.run.Lock()
	defer j.run.Unlock()

	batchID := j.state.BatchID()
	var logs LogAppender
	if saveLog {
		logs = r.logs
	}
	events := newEmitter(ctx, stream, logs, batchID, app.ID)

	if existed && j.started {
		logger.WithField("processed", j.state.ProcessedCount()).Info("Client reconnected to run")
		events.Event(sse.EventInfo, "Reconnected to existing run", map[string]interface{}{
			"requestId": requestID,
		})
		events.Event(sse.EventProgress, fmt.Sprintf("Progress: %.1f%%", j.state.Progress()), map[string]interface{}{
			"progress": j.state.Progress(),
			"stats":    j.state.Stats(),
		})
	}
	j.started = true

	for {
		err := r.runner.Run(ctx, app, urls, j.state, events)
		if err == nil {
			r.release(requestID)
			return batchID, nil
		}

		if ctx.Err() != nil {
			// Client is gone; keep the job so a reconnect resumes it.
			logger.Warn("Run interrupted, keeping state for reconnection")
			return batchID, ctx.Err()
		}

		if j.retryCount >= r.maxRetries {
			logger.WithError(err).WithField("retries", j.retryCount).Error("Run failed, retries exhausted")
			events.Event(sse.EventError, fmt.Sprintf("Run failed after %d retries: %v", j.retryCount, err), nil)
			r.release(requestID)
			return batchID, err
		}

		delay := time.Duration(float64(r.retryDelay) * math.Pow(r.backoffFactor, float64(j.retryCount)))
		j.retryCount++

		logger.WithError(err).WithFields(map[string]interface{}{
			"retryCount": j.retryCount,
			"maxRetries": r.maxRetries,
			"delay":      delay,
		}).Warn("Run failed, retrying")
		events.Event(sse.EventReconnect, fmt.Sprintf("Run failed, retrying in %s", delay), map[string]interface{}{
			"retryCount": j.retryCount,
			"maxRetries": r.maxRetries,
			"delay":      delay.Milliseconds(),
		})

		if err := r.sleep(ctx, delay); err != nil {
			logger.Warn("Retry wait interrupted, keeping state for reconnection")
			return batchID, err
		}
	}
}
