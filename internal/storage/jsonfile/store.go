// Package jsonfile persists interviews and responses as indented JSON
// arrays on disk (interviews.json, responses.json, events.json). Each write
// rewrites the whole file under a lock, which is fine at interview scale.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
)

const (
	interviewsFile = "interviews.json"
	responsesFile  = "responses.json"
	eventsFile     = "events.json"
)

// Store is the JSON-file implementation of ports.StorageProvider.
type Store struct {
	mu  sync.Mutex
	dir string
}

var _ ports.StorageProvider = (*Store)(nil)

// New creates the data directory if needed and returns a store rooted at it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func readFile[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return items, nil
}

func writeFile[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) interviewsPath() string { return filepath.Join(s.dir, interviewsFile) }
func (s *Store) responsesPath() string  { return filepath.Join(s.dir, responsesFile) }
func (s *Store) eventsPath() string     { return filepath.Join(s.dir, eventsFile) }

func (s *Store) CreateInterview(ctx context.Context, iv *domain.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	interviews, err := readFile[*domain.Interview](s.interviewsPath())
	if err != nil {
		return err
	}
	for _, existing := range interviews {
		if existing.ID == iv.ID {
			return fmt.Errorf("interview %s already exists", iv.ID)
		}
	}

	now := time.Now().UTC()
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = now
	}
	iv.UpdatedAt = now
	if iv.TranscriptEntries == nil {
		iv.TranscriptEntries = []domain.TranscriptEntry{}
	}

	interviews = append(interviews, iv)
	return writeFile(s.interviewsPath(), interviews)
}

func (s *Store) GetInterview(ctx context.Context, id string) (*domain.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	interviews, err := readFile[*domain.Interview](s.interviewsPath())
	if err != nil {
		return nil, err
	}
	for _, iv := range interviews {
		if iv.ID == id {
			return iv, nil
		}
	}
	return nil, fmt.Errorf("interview %s: %w", id, domain.ErrInterviewNotFound)
}

func (s *Store) UpdateInterview(ctx context.Context, iv *domain.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	interviews, err := readFile[*domain.Interview](s.interviewsPath())
	if err != nil {
		return err
	}
	for i, existing := range interviews {
		if existing.ID == iv.ID {
			iv.UpdatedAt = time.Now().UTC()
			if iv.TranscriptEntries == nil {
				iv.TranscriptEntries = existing.TranscriptEntries
			}
			interviews[i] = iv
			return writeFile(s.interviewsPath(), interviews)
		}
	}
	return fmt.Errorf("interview %s: %w", iv.ID, domain.ErrInterviewNotFound)
}

func (s *Store) ListInterviews(ctx context.Context) ([]*domain.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return readFile[*domain.Interview](s.interviewsPath())
}

func (s *Store) AppendResponse(ctx context.Context, rec *domain.ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := readFile[*domain.ResponseRecord](s.responsesPath())
	if err != nil {
		return err
	}
	records = append(records, rec)
	return writeFile(s.responsesPath(), records)
}

func (s *Store) ListResponses(ctx context.Context, sessionID string) ([]*domain.ResponseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := readFile[*domain.ResponseRecord](s.responsesPath())
	if err != nil {
		return nil, err
	}
	var result []*domain.ResponseRecord
	for _, rec := range records {
		if rec.SessionID == sessionID {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (s *Store) AppendTranscriptEntry(ctx context.Context, interviewID string, entry *domain.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	interviews, err := readFile[*domain.Interview](s.interviewsPath())
	if err != nil {
		return err
	}
	for i, iv := range interviews {
		if iv.ID == interviewID {
			if entry.ID == "" {
				entry.ID = uuid.NewString()
			}
			if entry.Timestamp.IsZero() {
				entry.Timestamp = time.Now().UTC()
			}
			iv.TranscriptEntries = append(iv.TranscriptEntries, *entry)
			iv.UpdatedAt = time.Now().UTC()
			interviews[i] = iv
			return writeFile(s.interviewsPath(), interviews)
		}
	}
	return fmt.Errorf("interview %s: %w", interviewID, domain.ErrInterviewNotFound)
}

func (s *Store) AppendEvent(ctx context.Context, event *domain.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := readFile[*domain.SessionEvent](s.eventsPath())
	if err != nil {
		return err
	}
	events = append(events, event)
	return writeFile(s.eventsPath(), events)
}

func (s *Store) ListEvents(ctx context.Context, sessionID string) ([]*domain.SessionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := readFile[*domain.SessionEvent](s.eventsPath())
	if err != nil {
		return nil, err
	}
	var result []*domain.SessionEvent
	for _, ev := range events {
		if ev.SessionID == sessionID {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (s *Store) Close() error {
	return nil
}
