package audit

import (
	"context"
	"log/slog"
	"time"

	"educa/pkg/requestcontext"
)

// Sink persists or forwards audit events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher captures structured audit events and fans them out to sinks.
// Sink failures are logged and never returned: auditing must not fail the
// operation that produced the event.
type Publisher struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewPublisher(logger *slog.Logger, sinks ...Sink) *Publisher {
	return &Publisher{sinks: sinks, logger: logger}
}

// Emit fills timestamp, category and request metadata from ctx and appends
// the event to every sink.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}
	}
	event.Category = event.Action.Category()
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	if event.ActorID == 0 {
		event.ActorID = requestcontext.AccountID(ctx)
	}

	for _, sink := range p.sinks {
		if err := sink.Append(ctx, event); err != nil {
			p.logger.ErrorContext(ctx, "failed to append audit event",
				"action", event.Action,
				"error", err,
				"request_id", event.RequestID,
			)
		}
	}
}
