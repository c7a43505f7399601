// Package webhook delivers accepted answers to an external HTTP endpoint.
// Delivery is fail-open: after the retry budget is spent the record is
// dropped with a logged error, never blocking the interview.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
	"github.com/tjfontaine/interview-conductor/internal/pkg/safehttp"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 2
)

// Sink posts each record as JSON to a configured URL.
type Sink struct {
	url      string
	retries  int
	failHard bool
	headers  map[string]string
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.RecordSink = (*Sink)(nil)

// Option configures a Sink.
type Option func(*Sink)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Sink) { s.client.Timeout = d }
}

// WithRetries sets how many times a failed delivery is retried.
func WithRetries(n int) Option {
	return func(s *Sink) { s.retries = n }
}

// WithFailOpen controls what happens when the retry budget is spent.
// When open (the default) the record is dropped with a logged error;
// when closed the error is surfaced to the caller.
func WithFailOpen(open bool) Option {
	return func(s *Sink) { s.failHard = !open }
}

// WithHeaders adds custom headers to every delivery.
func WithHeaders(headers map[string]string) Option {
	return func(s *Sink) { s.headers = headers }
}

// WithHTTPClient replaces the default SSRF-guarded client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Sink) { s.client = client }
}

// WithLogger sets the logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) { s.logger = logger }
}

// New builds a webhook sink for the given URL. The default client refuses
// connections to private and loopback addresses.
func New(url string, opts ...Option) *Sink {
	s := &Sink{
		url:     url,
		retries: defaultRetries,
		client: &http.Client{
			Timeout:   defaultTimeout,
			Transport: safehttp.SafeTransport,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) HandleRecord(ctx context.Context, rec *domain.ResponseRecord) error {
	var lastErr error

	attempts := s.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if err := s.deliver(ctx, rec); err == nil {
			return nil
		} else {
			lastErr = err
		}

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			break
		}
	}

	if s.failHard {
		return fmt.Errorf("webhook delivery to %s: %w", s.url, lastErr)
	}

	s.logger.Error("webhook delivery failed, dropping record",
		slog.String("url", s.url),
		slog.String("session_id", rec.SessionID),
		slog.String("error", lastErr.Error()),
	)
	return nil
}

func (s *Sink) deliver(ctx context.Context, rec *domain.ResponseRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *Sink) Close() error {
	return nil
}
