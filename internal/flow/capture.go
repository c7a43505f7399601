package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
	"github.com/tjfontaine/interview-conductor/internal/retry"
)

// minTranscriptRunes rejects noise like "uh" or a stray punctuation final.
const minTranscriptRunes = 3

// Capturer turns the speech-input stream into accepted answers. Each
// outer policy attempt (greeting, intro, technical, follow-up) opens a
// fresh transcript stream and waits for one final segment of at least
// three runes; stream errors mentioning audio are retried internally with
// exponential backoff before the attempt is charged.
type Capturer struct {
	listener ports.SpeechInput
	exec     *retry.Executor
	logger   *slog.Logger
}

// NewCapturer wraps a speech-input capability.
func NewCapturer(listener ports.SpeechInput, exec *retry.Executor, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{listener: listener, exec: exec, logger: logger}
}

// audioRetryable matches the transient capture failures worth retrying.
func audioRetryable(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "audio")
}

func transcriptionPolicy() retry.Policy {
	return retry.Policy{
		Name:        "transcription",
		MaxAttempts: 4,
		Backoff:     time.Second,
		RetryIf:     audioRetryable,
	}
}

// Capture runs the outer capture policy p and returns the first accepted
// answer. A returned error means no answer was obtained within the
// policy's attempts; the caller decides what the silence means.
func (c *Capturer) Capture(ctx context.Context, p retry.Policy) (string, error) {
	var answer string
	err := c.exec.Do(ctx, p, func(ctx context.Context) error {
		text, err := c.captureOnce(ctx)
		if err != nil {
			return err
		}
		answer = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (c *Capturer) captureOnce(ctx context.Context) (string, error) {
	var answer string
	err := c.exec.Do(ctx, transcriptionPolicy(), func(ctx context.Context) error {
		segments, err := c.listener.CaptureUtterance(ctx)
		if err != nil {
			return fmt.Errorf("open transcript stream: %w", err)
		}
		for {
			select {
			case <-ctx.Done():
				return domain.ErrNoAnswer("capture window elapsed").WithCause(ctx.Err())
			case seg, ok := <-segments:
				if !ok {
					return domain.ErrNoAnswer("transcript stream ended without a final segment")
				}
				if seg.Err != nil {
					return fmt.Errorf("transcript stream: %w", seg.Err)
				}
				if !seg.Final {
					continue
				}
				text := strings.TrimSpace(seg.Text)
				if utf8.RuneCountInString(text) < minTranscriptRunes {
					c.logger.Debug("short final transcript ignored", slog.String("text", text))
					continue
				}
				answer = text
				return nil
			}
		}
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}
