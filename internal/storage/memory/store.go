// Package memory is an in-memory StorageProvider for tests and ephemeral
// runs. Nothing survives process exit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
)

// Store is an in-memory implementation of ports.StorageProvider.
type Store struct {
	mu         sync.RWMutex
	interviews map[string]*domain.Interview
	responses  map[string][]*domain.ResponseRecord
	events     map[string][]*domain.SessionEvent
}

var _ ports.StorageProvider = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		interviews: make(map[string]*domain.Interview),
		responses:  make(map[string][]*domain.ResponseRecord),
		events:     make(map[string][]*domain.SessionEvent),
	}
}

func (s *Store) CreateInterview(ctx context.Context, iv *domain.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.interviews[iv.ID]; exists {
		return fmt.Errorf("interview %s already exists", iv.ID)
	}

	now := time.Now().UTC()
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = now
	}
	iv.UpdatedAt = now
	if iv.TranscriptEntries == nil {
		iv.TranscriptEntries = []domain.TranscriptEntry{}
	}

	s.interviews[iv.ID] = cloneInterview(iv)
	return nil
}

func (s *Store) GetInterview(ctx context.Context, id string) (*domain.Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	iv, exists := s.interviews[id]
	if !exists {
		return nil, fmt.Errorf("interview %s: %w", id, domain.ErrInterviewNotFound)
	}
	return cloneInterview(iv), nil
}

func (s *Store) UpdateInterview(ctx context.Context, iv *domain.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.interviews[iv.ID]
	if !exists {
		return fmt.Errorf("interview %s: %w", iv.ID, domain.ErrInterviewNotFound)
	}

	iv.UpdatedAt = time.Now().UTC()
	next := cloneInterview(iv)
	// The transcript is owned by AppendTranscriptEntry; updates never
	// replace it.
	next.TranscriptEntries = stored.TranscriptEntries
	s.interviews[iv.ID] = next
	return nil
}

func (s *Store) ListInterviews(ctx context.Context) ([]*domain.Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Interview, 0, len(s.interviews))
	for _, iv := range s.interviews {
		result = append(result, cloneInterview(iv))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) AppendResponse(ctx context.Context, rec *domain.ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *rec
	s.responses[rec.SessionID] = append(s.responses[rec.SessionID], &copied)
	return nil
}

func (s *Store) ListResponses(ctx context.Context, sessionID string) ([]*domain.ResponseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.responses[sessionID]
	result := make([]*domain.ResponseRecord, 0, len(stored))
	for _, rec := range stored {
		copied := *rec
		result = append(result, &copied)
	}
	return result, nil
}

func (s *Store) AppendTranscriptEntry(ctx context.Context, interviewID string, entry *domain.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	iv, exists := s.interviews[interviewID]
	if !exists {
		return fmt.Errorf("interview %s: %w", interviewID, domain.ErrInterviewNotFound)
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	iv.TranscriptEntries = append(iv.TranscriptEntries, *entry)
	iv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, event *domain.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *event
	s.events[event.SessionID] = append(s.events[event.SessionID], &copied)
	return nil
}

func (s *Store) ListEvents(ctx context.Context, sessionID string) ([]*domain.SessionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.events[sessionID]
	result := make([]*domain.SessionEvent, 0, len(stored))
	for _, ev := range stored {
		copied := *ev
		result = append(result, &copied)
	}
	return result, nil
}

func (s *Store) Close() error {
	return nil
}

func cloneInterview(iv *domain.Interview) *domain.Interview {
	copied := *iv
	if iv.Settings != nil {
		settings := *iv.Settings
		copied.Settings = &settings
	}
	if iv.LiveStatus != nil {
		live := *iv.LiveStatus
		copied.LiveStatus = &live
	}
	copied.TranscriptEntries = append([]domain.TranscriptEntry(nil), iv.TranscriptEntries...)
	return &copied
}
