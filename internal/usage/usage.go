// Package usage records one observability event per processed turn. Sinks
// are pluggable (Postgres, SQS, none); recording happens off the request
// path so a slow sink never delays a reply.
package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/mathparenting/tutor-gateway/internal/domain"
)

// Sink persists usage records.
type Sink interface {
	Record(ctx context.Context, record domain.UsageRecord) error
}

// NoopSink discards records; the default when no sink is configured.
type NoopSink struct{}

func (NoopSink) Record(ctx context.Context, record domain.UsageRecord) error {
	return nil
}

// AsyncRecorder buffers records and writes them from a background worker.
// The buffer drops on overflow: usage data is best-effort and must never
// block or fail a chat request.
type AsyncRecorder struct {
	sink Sink
	ch   chan domain.UsageRecord
	done chan struct{}
}

func NewAsyncRecorder(sink Sink) *AsyncRecorder {
	r := &AsyncRecorder{
		sink: sink,
		ch:   make(chan domain.UsageRecord, 256),
		done: make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues without blocking.
func (r *AsyncRecorder) Record(rec domain.UsageRecord) {
	select {
	case r.ch <- rec:
	default:
		slog.Warn("usage buffer full, dropping record", "request_id", rec.RequestID)
	}
}

// Close drains the buffer and stops the worker.
func (r *AsyncRecorder) Close() {
	close(r.ch)
	<-r.done
}

func (r *AsyncRecorder) run() {
	defer close(r.done)

	for rec := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.sink.Record(ctx, rec); err != nil {
			slog.Error("failed to record usage", "error", err, "request_id", rec.RequestID)
		}
		cancel()
	}
}
