package flow

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/interview-conductor/internal/core/ports"
)

// Watcher consumes voice-activity events on a secondary goroutine. On a
// false interruption it re-engages the candidate through the shared
// speaker; it never touches session state. It stops when the session
// context is cancelled or the event channel closes.
type Watcher struct {
	voice   ports.VoiceActivity
	speaker *Speaker
	logger  *slog.Logger
}

// NewWatcher creates a Watcher over the voice-activity capability.
func NewWatcher(voice ports.VoiceActivity, speaker *Speaker, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{voice: voice, speaker: speaker, logger: logger}
}

// Run blocks consuming events; callers start it with go.
func (w *Watcher) Run(ctx context.Context) {
	events := w.voice.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.logger.Debug("voice event", slog.String("type", string(ev.Type)))
			if ev.Type != ports.VoiceFalseInterruption {
				continue
			}
			if err := w.speaker.Say(ctx, linePleaseContinue); err != nil {
				return
			}
		}
	}
}
