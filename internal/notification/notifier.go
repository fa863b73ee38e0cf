// Package notification delivers account messages to people over WhatsApp.
package notification

import (
	"context"
	"log/slog"
	"sync"
)

// Message is a text addressed to a WhatsApp phone number.
type Message struct {
	Phone string
	Text  string
}

// Notifier sends messages. Implementations must be safe for concurrent use.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the log instead of sending them. It is the
// default when no gateway is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "whatsapp message",
		"phone", msg.Phone,
		"length", len(msg.Text),
	)
	return nil
}

// Recorder keeps sent messages in memory. Err, when set, is returned for
// every send to the listed phones (or all phones if FailPhones is empty).
type Recorder struct {
	mu         sync.Mutex
	sent       []Message
	Err        error
	FailPhones map[string]bool
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil && (len(r.FailPhones) == 0 || r.FailPhones[msg.Phone]) {
		return r.Err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}

// SentTo returns the messages delivered to phone.
func (r *Recorder) SentTo(phone string) []Message {
	var out []Message
	for _, m := range r.Sent() {
		if m.Phone == phone {
			out = append(out, m)
		}
	}
	return out
}
