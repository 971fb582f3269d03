package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Sink receives progress updates.
type Sink interface {
	Deliver(ctx context.Context, u Update) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, u Update) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, u Update) error {
	return f(ctx, u)
}

// Discard drops every update.
var Discard Sink = SinkFunc(func(context.Context, Update) error { return nil })

// Multi delivers to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, u Update) error {
		var errs []error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Deliver(ctx, u); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// LogSink writes updates as structured log lines.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink logging through logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver implements Sink.
func (s *LogSink) Deliver(_ context.Context, u Update) error {
	s.logger.Info().
		Int("checked", u.Checked).
		Int("total", u.Total).
		Int("percent", u.Percent).
		Int("detections", u.Detections).
		Str("status", u.Status()).
		Msg("Scan in progress")
	return nil
}

// WebhookSink POSTs updates as JSON to an HTTP endpoint.
type WebhookSink struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookSink creates a webhook sink. Each update is attempted once.
func NewWebhookSink(url string, headers map[string]string, timeout time.Duration) (*WebhookSink, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url is empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hdr := make(map[string]string, len(headers))
	for k, v := range headers {
		hdr[k] = v
	}
	return &WebhookSink{
		url:     url,
		headers: hdr,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type webhookPayload struct {
	Update
	Status string `json:"status"`
}

// Deliver implements Sink.
func (s *WebhookSink) Deliver(ctx context.Context, u Update) error {
	payload, err := json.Marshal(webhookPayload{Update: u, Status: u.Status()})
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d body=%q", resp.StatusCode, truncateBody(body))
	}
	return nil
}

func truncateBody(b []byte) string {
	const limit = 200
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
