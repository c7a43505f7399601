// Package store is the default record sink: it appends each accepted
// answer to the response log and mirrors the exchange into the interview's
// transcript when the session is tied to a scheduled interview.
package store

import (
	"context"
	"fmt"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
)

// Sink persists records through a StorageProvider.
type Sink struct {
	responses   ports.ResponseStore
	transcripts ports.TranscriptStore
	interviewID string
}

var _ ports.RecordSink = (*Sink)(nil)

// Option configures a Sink.
type Option func(*Sink)

// WithTranscript mirrors each record into the transcript of the given
// interview. Without it the sink only appends to the response log.
func WithTranscript(transcripts ports.TranscriptStore, interviewID string) Option {
	return func(s *Sink) {
		s.transcripts = transcripts
		s.interviewID = interviewID
	}
}

// New builds a sink over the response store.
func New(responses ports.ResponseStore, opts ...Option) *Sink {
	s := &Sink{responses: responses}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) HandleRecord(ctx context.Context, rec *domain.ResponseRecord) error {
	if err := s.responses.AppendResponse(ctx, rec); err != nil {
		return fmt.Errorf("append response: %w", err)
	}

	if s.transcripts == nil || s.interviewID == "" {
		return nil
	}

	entries := []domain.TranscriptEntry{
		{Speaker: domain.SpeakerInterviewer, Text: rec.Question, Timestamp: rec.Timestamp},
		{Speaker: domain.SpeakerCandidate, Text: rec.Response, Timestamp: rec.Timestamp},
	}
	for i := range entries {
		if err := s.transcripts.AppendTranscriptEntry(ctx, s.interviewID, &entries[i]); err != nil {
			return fmt.Errorf("append transcript entry: %w", err)
		}
	}
	return nil
}

func (s *Sink) Close() error {
	return nil
}
