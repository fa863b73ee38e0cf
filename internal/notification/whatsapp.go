package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// WhatsAppConfig configures the HTTP gateway client.
type WhatsAppConfig struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	MaxRetries   int
	InitialDelay time.Duration
}

// WhatsAppClient posts messages to an HTTP WhatsApp gateway. Network errors,
// 429 and 5xx responses are retried with exponential backoff; other 4xx
// responses fail immediately.
type WhatsAppClient struct {
	cfg    WhatsAppConfig
	http   *http.Client
	logger *slog.Logger
}

func NewWhatsAppClient(cfg WhatsAppConfig, logger *slog.Logger) *WhatsAppClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 200 * time.Millisecond
	}
	return &WhatsAppClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// GatewayError is a non-2xx gateway response.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("whatsapp gateway returned %d: %s", e.StatusCode, e.Body)
}

func (c *WhatsAppClient) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(sendRequest{Phone: msg.Phone, Message: msg.Text})
	if err != nil {
		return fmt.Errorf("marshal whatsapp message: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialDelay
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(max(c.cfg.MaxRetries, 0))), ctx)

	attempt := 0
	op := func() error {
		attempt++
		return c.post(ctx, body)
	}
	notify := func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "whatsapp send failed, retrying",
			"attempt", attempt,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return fmt.Errorf("send whatsapp message after %d attempts: %w", attempt, err)
	}
	return nil
}

func (c *WhatsAppClient) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	gwErr := &GatewayError{StatusCode: resp.StatusCode, Body: string(snippet)}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return gwErr
	}
	return backoff.Permanent(gwErr)
}
