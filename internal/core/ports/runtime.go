package ports

import (
	"context"

	"github.com/tjfontaine/interview-conductor/internal/config"
	"github.com/tjfontaine/interview-conductor/internal/core/domain"
)

// ConfigProvider loads and manages configuration.
// Implementations: file-based with hot-reload (default).
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}

// InterviewStore persists the record-API view of interviews.
type InterviewStore interface {
	// CreateInterview stores a newly scheduled interview.
	CreateInterview(ctx context.Context, iv *domain.Interview) error

	// GetInterview retrieves an interview by ID.
	GetInterview(ctx context.Context, id string) (*domain.Interview, error)

	// UpdateInterview replaces an existing interview.
	UpdateInterview(ctx context.Context, iv *domain.Interview) error

	// ListInterviews returns all stored interviews ordered by creation time.
	ListInterviews(ctx context.Context) ([]*domain.Interview, error)
}

// ResponseStore persists the append-only answer log.
type ResponseStore interface {
	// AppendResponse appends one accepted answer. Records arrive in
	// chronological order, exactly once each.
	AppendResponse(ctx context.Context, rec *domain.ResponseRecord) error

	// ListResponses returns a session's responses in append order.
	ListResponses(ctx context.Context, sessionID string) ([]*domain.ResponseRecord, error)
}

// TranscriptStore persists spoken lines for the transcript endpoint.
type TranscriptStore interface {
	AppendTranscriptEntry(ctx context.Context, interviewID string, entry *domain.TranscriptEntry) error
}

// EventStore persists session lifecycle events.
type EventStore interface {
	AppendEvent(ctx context.Context, event *domain.SessionEvent) error
	ListEvents(ctx context.Context, sessionID string) ([]*domain.SessionEvent, error)
}

// StorageProvider manages all storage operations.
// Implementations: SQLite (default), in-memory, JSON file.
type StorageProvider interface {
	InterviewStore
	ResponseStore
	TranscriptStore
	EventStore

	Close() error
}

// RecordSink receives one ResponseRecord per accepted answer, in
// chronological order. Sink failures are logged by the recorder and never
// surfaced to the flow.
type RecordSink interface {
	HandleRecord(ctx context.Context, rec *domain.ResponseRecord) error
	Close() error
}

// EventPublisher publishes session lifecycle events.
// Implementations: direct storage (default).
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.SessionEvent) error
	Close() error
}
