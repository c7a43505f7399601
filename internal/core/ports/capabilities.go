// Package ports defines the interfaces between the conductor core and its
// external collaborators: the voice capabilities it drives and the runtime
// services (config, storage, events) it is composed from.
package ports

import (
	"context"
	"time"
)

// SpeakResult reports how a speak call completed.
type SpeakResult struct {
	// Completed, when non-nil, is closed once the capability has finished
	// delivering the speech. Adapters without a real completion signal
	// leave it nil and the caller falls back to EstimatedDuration.
	Completed <-chan struct{}

	// EstimatedDuration is the adapter's estimate of the spoken length.
	// Zero when the adapter cannot estimate; the caller then derives a
	// wait from the text length.
	EstimatedDuration time.Duration
}

// SpeechOutput synthesizes and delivers spoken prompts to the candidate.
// Speak suspends until the speech has been handed to the synthesis layer,
// not necessarily until it has been heard; SpeakResult carries the
// completion signal when one exists.
type SpeechOutput interface {
	Speak(ctx context.Context, text string, ssml bool) (*SpeakResult, error)
	Close() error
}

// TranscriptSegment is one transcription result from the speech-input
// capability. Interim segments carry Final=false and are discarded by the
// flow; only final segments longer than two characters are accepted.
type TranscriptSegment struct {
	Text  string
	Final bool

	// Err reports a stream-level failure. When set, Text and Final are
	// meaningless and the stream produces no further segments.
	Err error
}

// SpeechInput captures candidate utterances. CaptureUtterance opens a
// transcript stream; the stream honors ctx cancellation and closes its
// channel when the context is done or the capability fails.
type SpeechInput interface {
	CaptureUtterance(ctx context.Context) (<-chan TranscriptSegment, error)
	Close() error
}

// QuestionGenerator produces the next interview question from an assembled
// prompt context. Callers enforce the 30-second deadline via ctx; results
// of ten characters or fewer after trimming are treated as failures.
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, prompt string) (string, error)
}

// VoiceEventType identifies an asynchronous voice-activity notification.
type VoiceEventType string

const (
	VoiceSpeechStarted     VoiceEventType = "speech_started"
	VoiceUtteranceEnd      VoiceEventType = "utterance_end"
	VoiceFalseInterruption VoiceEventType = "false_interruption"
)

// VoiceEvent is one asynchronous notification from the voice-activity
// layer.
type VoiceEvent struct {
	Type      VoiceEventType
	Timestamp time.Time
}

// VoiceActivity surfaces voice-activity events. The channel is closed when
// the capability shuts down; consumers must never block the main flow.
type VoiceActivity interface {
	Events() <-chan VoiceEvent
}

// Capabilities bundles the four injected capability ports for one session.
// All four must be non-nil; construction failures are fatal and abort the
// session before the flow starts.
type Capabilities struct {
	Speech    SpeechOutput
	Listener  SpeechInput
	Generator QuestionGenerator
	Voice     VoiceActivity
}
