package audit

import (
	"context"
	"log/slog"
)

// AsyncSink queues events for a background Worker so slow sinks stay off
// the request path. Events are dropped with a warning when the queue is full.
type AsyncSink struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewAsyncSink(buffer int, logger *slog.Logger) *AsyncSink {
	return &AsyncSink{inbox: make(chan Event, buffer), logger: logger}
}

func (s *AsyncSink) Append(ctx context.Context, e Event) error {
	select {
	case s.inbox <- e:
	default:
		s.logger.WarnContext(ctx, "audit queue full, dropping event",
			"action", e.Action,
			"request_id", e.RequestID,
		)
	}
	return nil
}

// Worker drains an AsyncSink into a downstream sink.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, source *AsyncSink, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: source.inbox, logger: logger}
}

// Run forwards events until ctx is done, then flushes what is queued.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			w.drain()
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
		case event := <-w.inbox:
			w.forward(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			w.forward(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) forward(ctx context.Context, event Event) {
	if err := w.sink.Append(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "failed to forward audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
