// Package sse implements the streaming channel between a running indexing
// job and its client: events are queued without blocking the producer,
// flushed to the transport on a fixed cadence, and framed per the
// text/event-stream convention.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/url-indexer/internal/logging"
)

// EventType classifies stream events.
type EventType string

const (
	EventInfo      EventType = "info"
	EventError     EventType = "error"
	EventSuccess   EventType = "success"
	EventProgress  EventType = "progress"
	EventWarning   EventType = "warning"
	EventReconnect EventType = "reconnect"
)

// Event is one stream message.
type Event struct {
	Type      EventType              `json:"type"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// Sink is the transport an event stream writes to. WriteEvent receives the
// wire-framed bytes for a single event.
type Sink interface {
	WriteEvent(p []byte) error
}

// DefaultFlushInterval is the queue drain cadence.
const DefaultFlushInterval = 100 * time.Millisecond

// Stream buffers outbound events and flushes them to the sink periodically.
// Send never blocks the caller; Close drains synchronously and is
// idempotent. After Close, Send is a no-op.
type Stream struct {
	sink     Sink
	interval time.Duration
	logger   *logging.Logger

	mu     sync.Mutex
	queue  []Event
	closed bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewStream creates a stream and starts its background flusher.
func NewStream(sink Sink, interval time.Duration) *Stream {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	s := &Stream{
		sink:     sink,
		interval: interval,
		logger:   logging.GetGlobalLogger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

func (s *Stream) flushLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.stop:
			return
		}
	}
}

// Send enqueues an event. It never blocks and never fails; events sent after
// Close are dropped.
func (s *Stream) Send(typ EventType, message string, data map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, Event{
		Type:      typ,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// flush drains the queue and writes each event to the sink, mirroring it to
// the service log.
func (s *Stream) flush() {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, event := range pending {
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.WithError(err).Error("Failed to serialize stream event")
			continue
		}
		framed := fmt.Sprintf("data: %s\n\n", payload)
		if err := s.sink.WriteEvent([]byte(framed)); err != nil {
			// The client may have gone away; the job keeps running so a
			// reconnect can resume, so a write failure is not fatal here.
			s.logger.WithError(err).Debug("Stream write failed")
		}
		s.logger.WithFields(map[string]interface{}{
			"type":    event.Type,
			"message": event.Message,
		}).Debug("Stream event")
	}
}

// Close drains any queued events synchronously, stops the flusher and marks
// the stream closed. Safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	s.flush()
}

// IsClosed reports whether the stream has been closed.
func (s *Stream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// httpSink adapts an http.ResponseWriter to the Sink interface, flushing
// after every event so the client sees it immediately.
type httpSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewHTTPSink prepares a ResponseWriter for event streaming and returns the
// sink. The ok result is false when the writer does not support flushing.
func NewHTTPSink(w http.ResponseWriter) (Sink, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &httpSink{w: w, flusher: flusher}, true
}

func (h *httpSink) WriteEvent(p []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.w.Write(p); err != nil {
		return err
	}
	h.flusher.Flush()
	return nil
}
