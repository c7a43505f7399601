package flow

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/tjfontaine/interview-conductor/internal/core/ports"
	"github.com/tjfontaine/interview-conductor/internal/retry"
)

// ssmlEscaper sanitizes text before it is wrapped in <speak> tags.
var ssmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func wrapSSML(text string) string {
	return "<speak>" + ssmlEscaper.Replace(text) + "</speak>"
}

// Speaker is the single gateway to the speech-output capability. A mutex
// serializes every utterance so the false-interruption watcher can never
// interleave with the main flow. Delivery degrades SSML, then plain text,
// then gives up without failing the interview.
type Speaker struct {
	mu     sync.Mutex
	speech ports.SpeechOutput
	exec   *retry.Executor
	sleep  retry.SleepFunc
	logger *slog.Logger
}

// SpeakerOption configures a Speaker.
type SpeakerOption func(*Speaker)

// WithSpeakerSleep sets the wait primitive used for completion estimates.
func WithSpeakerSleep(sleep retry.SleepFunc) SpeakerOption {
	return func(s *Speaker) {
		s.sleep = sleep
	}
}

// WithSpeakerLogger sets the speaker's logger.
func WithSpeakerLogger(logger *slog.Logger) SpeakerOption {
	return func(s *Speaker) {
		s.logger = logger
	}
}

// NewSpeaker wraps a speech-output capability.
func NewSpeaker(speech ports.SpeechOutput, exec *retry.Executor, opts ...SpeakerOption) *Speaker {
	s := &Speaker{
		speech: speech,
		exec:   exec,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func speechPolicy() retry.Policy {
	return retry.Policy{
		Name:        "speech output",
		MaxAttempts: 3,
		Backoff:     time.Second,
	}
}

// Say speaks text and waits for delivery. SSML is tried first under the
// speech retry policy; on exhaustion it falls back to plain text, and if
// that also fails the line is dropped with a warning. The only error Say
// returns is a cancelled context.
func (s *Speaker) Say(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.exec.Do(ctx, speechPolicy(), func(ctx context.Context) error {
		return s.deliver(ctx, text, true)
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.Warn("ssml speech failed, falling back to plain text",
		slog.String("error", err.Error()))
	if err := s.deliver(ctx, text, false); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("plain speech failed, continuing without this line",
			slog.String("text", text),
			slog.String("error", err.Error()))
	}
	return nil
}

func (s *Speaker) deliver(ctx context.Context, text string, ssml bool) error {
	payload := text
	if ssml {
		payload = wrapSSML(text)
	}
	res, err := s.speech.Speak(ctx, payload, ssml)
	if err != nil {
		return err
	}
	return s.waitDelivered(ctx, res, text, ssml)
}

// waitDelivered blocks until the capability signals completion, or for the
// capability's estimate, or for a length-derived estimate when neither is
// available.
func (s *Speaker) waitDelivered(ctx context.Context, res *ports.SpeakResult, text string, ssml bool) error {
	if res != nil && res.Completed != nil {
		select {
		case <-res.Completed:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	d := time.Duration(0)
	if res != nil {
		d = res.EstimatedDuration
	}
	if d <= 0 {
		d = estimateSpeechWait(text, ssml)
	}
	return s.sleep(ctx, d)
}

func estimateSpeechWait(text string, ssml bool) time.Duration {
	chars := float64(utf8.RuneCountInString(text))
	secs := chars / 15
	floor := 2.0
	if ssml {
		secs = chars / 12
		floor = 3.0
	}
	if secs < floor {
		secs = floor
	}
	return time.Duration(secs * float64(time.Second))
}
