package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"educa/internal/platform/kafka"
)

// LogSink writes events as structured audit log lines.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, string(e.Action),
		"log_type", "audit",
		"event", e.Action,
		"category", e.Category,
		"account_id", e.AccountID,
		"actor_id", e.ActorID,
		"subject", e.Subject,
		"outcome", e.Outcome,
		"reason", e.Reason,
		"request_id", e.RequestID,
	)
	return nil
}

// EventPublisher is the subset of the kafka producer the sink needs.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaSink publishes events as JSON to the audit topic. Records are keyed
// by account so one account's events stay ordered within a partition.
type KafkaSink struct {
	producer EventPublisher
	topic    string
}

func NewKafkaSink(producer EventPublisher, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Append(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	key := uuid.NewString()
	if e.AccountID != 0 {
		key = strconv.FormatInt(e.AccountID, 10)
	}
	return s.producer.Publish(ctx, kafka.Message{
		Topic: s.topic,
		Key:   []byte(key),
		Value: payload,
		Headers: map[string]string{
			"action":   string(e.Action),
			"category": string(e.Category),
		},
	})
}

// MemorySink keeps events in memory for tests and local runs.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of everything appended so far.
func (s *MemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByAction returns the events with the given action.
func (s *MemorySink) ByAction(action Action) []Event {
	var out []Event
	for _, e := range s.Events() {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
