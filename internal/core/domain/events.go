package domain

import (
	"time"
)

// SessionEvent is a high-level lifecycle event for one interview session.
// Events are published for decoupled consumers (storage, analytics) and are
// never consulted by the flow itself.
type SessionEvent struct {
	Type      SessionEventType  `json:"type"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Data      map[string]string `json:"data,omitempty"`
}

// SessionEventType identifies the type of session lifecycle event.
type SessionEventType string

const (
	SessionEventStarted          SessionEventType = "session.started"
	SessionEventPhaseChanged     SessionEventType = "session.phase_changed"
	SessionEventAnswerRecorded   SessionEventType = "session.answer_recorded"
	SessionEventExtensionGranted SessionEventType = "session.extension_granted"
	SessionEventCompleted        SessionEventType = "session.completed"
	SessionEventFailed           SessionEventType = "session.failed"
)

// Phase is one state of the interview flow state machine. Transitions are
// unconditional forward progress; PhaseDone is terminal.
type Phase string

const (
	PhaseGreeting     Phase = "greeting"
	PhaseIntroduction Phase = "introduction"
	PhaseTopicLoop    Phase = "topic_loop"
	PhaseClosing      Phase = "closing"
	PhaseDone         Phase = "done"
)
