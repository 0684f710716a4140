package job

import (
	"context"
	"time"

	"github.com/url-indexer/internal/sse"
	"github.com/url-indexer/internal/types"
)

// LogAppender persists run log lines. Append is best-effort and returns
// nothing.
type LogAppender interface {
	Append(ctx context.Context, line *types.LogLine)
}

// emitter fans run events out to the client stream and, when log saving is
// enabled for the run, to the log store.
type emitter struct {
	ctx     context.Context
	stream  *sse.Stream
	logs    LogAppender // nil when log saving is off
	batchID string
	appID   string
	now     func() time.Time
}

func newEmitter(ctx context.Context, stream *sse.Stream, logs LogAppender, batchID, appID string) *emitter {
	return &emitter{
		ctx:     ctx,
		stream:  stream,
		logs:    logs,
		batchID: batchID,
		appID:   appID,
		now:     time.Now,
	}
}

// Event sends a run-level event.
func (e *emitter) Event(typ sse.EventType, message string, data map[string]interface{}) {
	e.stream.Send(typ, message, data)
	e.append(typ, message, "", "")
}

// URLEvent sends an event attributed to a single URL.
func (e *emitter) URLEvent(typ sse.EventType, message, url string, status types.IndexStatus) {
	e.stream.Send(typ, message, map[string]interface{}{
		"url":    url,
		"status": status,
	})
	e.append(typ, message, url, status)
}

func (e *emitter) append(typ sse.EventType, message, url string, status types.IndexStatus) {
	if e.logs == nil {
		return
	}
	e.logs.Append(e.ctx, &types.LogLine{
		BatchID:   e.batchID,
		AppID:     e.appID,
		Type:      string(typ),
		Message:   message,
		URL:       url,
		Status:    status,
		Timestamp: e.now().UTC(),
	})
}
