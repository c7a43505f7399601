// Package sqlite is the primary storage backend: one WAL-mode database
// holding interviews, the append-only answer log, transcript entries, and
// session lifecycle events.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
)

// Store is the SQLite implementation of ports.StorageProvider.
type Store struct {
	db *sql.DB
}

var _ ports.StorageProvider = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the
// schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS interviews (
			id TEXT PRIMARY KEY,
			candidate_name TEXT NOT NULL,
			position TEXT NOT NULL,
			status TEXT NOT NULL,
			doc TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS responses (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			question TEXT NOT NULL,
			response TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transcript_entries (
			id TEXT PRIMARY KEY,
			interview_id TEXT NOT NULL,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			FOREIGN KEY (interview_id) REFERENCES interviews(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS session_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			type TEXT NOT NULL,
			data TEXT,
			timestamp TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interviews_status ON interviews(status)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_session ON responses(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_interview ON transcript_entries(interview_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON session_events(session_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateInterview(ctx context.Context, iv *domain.Interview) error {
	now := time.Now().UTC()
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = now
	}
	iv.UpdatedAt = now

	doc, err := json.Marshal(iv)
	if err != nil {
		return fmt.Errorf("marshal interview: %w", err)
	}

	query := `INSERT INTO interviews (id, candidate_name, position, status, doc, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		iv.ID, iv.CandidateName, iv.Position, string(iv.Status), string(doc), iv.CreatedAt, iv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create interview: %w", err)
	}
	return nil
}

func (s *Store) GetInterview(ctx context.Context, id string) (*domain.Interview, error) {
	query := `SELECT doc FROM interviews WHERE id = ?`

	var doc string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("interview %s: %w", id, domain.ErrInterviewNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get interview: %w", err)
	}

	var iv domain.Interview
	if err := json.Unmarshal([]byte(doc), &iv); err != nil {
		return nil, fmt.Errorf("unmarshal interview: %w", err)
	}

	entries, err := s.getTranscript(ctx, id)
	if err != nil {
		return nil, err
	}
	iv.TranscriptEntries = entries
	return &iv, nil
}

func (s *Store) UpdateInterview(ctx context.Context, iv *domain.Interview) error {
	iv.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(iv)
	if err != nil {
		return fmt.Errorf("marshal interview: %w", err)
	}

	query := `UPDATE interviews SET candidate_name = ?, position = ?, status = ?, doc = ?, updated_at = ?
	          WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		iv.CandidateName, iv.Position, string(iv.Status), string(doc), iv.UpdatedAt, iv.ID)
	if err != nil {
		return fmt.Errorf("update interview: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update interview: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("interview %s: %w", iv.ID, domain.ErrInterviewNotFound)
	}
	return nil
}

func (s *Store) ListInterviews(ctx context.Context) ([]*domain.Interview, error) {
	query := `SELECT doc FROM interviews ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}
	defer rows.Close()

	var interviews []*domain.Interview
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan interview: %w", err)
		}
		var iv domain.Interview
		if err := json.Unmarshal([]byte(doc), &iv); err != nil {
			return nil, fmt.Errorf("unmarshal interview: %w", err)
		}
		interviews = append(interviews, &iv)
	}
	return interviews, rows.Err()
}

func (s *Store) AppendResponse(ctx context.Context, rec *domain.ResponseRecord) error {
	query := `INSERT INTO responses (id, session_id, question, response, timestamp)
	          VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), rec.SessionID, rec.Question, rec.Response, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("append response: %w", err)
	}
	return nil
}

func (s *Store) ListResponses(ctx context.Context, sessionID string) ([]*domain.ResponseRecord, error) {
	query := `SELECT session_id, question, response, timestamp
	          FROM responses WHERE session_id = ?
	          ORDER BY timestamp ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var records []*domain.ResponseRecord
	for rows.Next() {
		var rec domain.ResponseRecord
		if err := rows.Scan(&rec.SessionID, &rec.Question, &rec.Response, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (s *Store) AppendTranscriptEntry(ctx context.Context, interviewID string, entry *domain.TranscriptEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query := `INSERT INTO transcript_entries (id, interview_id, speaker, text, timestamp)
	          VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, interviewID, entry.Speaker, entry.Text, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("append transcript entry: %w", err)
	}
	return nil
}

func (s *Store) getTranscript(ctx context.Context, interviewID string) ([]domain.TranscriptEntry, error) {
	query := `SELECT id, speaker, text, timestamp
	          FROM transcript_entries WHERE interview_id = ?
	          ORDER BY timestamp ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, interviewID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var entries []domain.TranscriptEntry
	for rows.Next() {
		var e domain.TranscriptEntry
		if err := rows.Scan(&e.ID, &e.Speaker, &e.Text, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transcript entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) AppendEvent(ctx context.Context, event *domain.SessionEvent) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	query := `INSERT INTO session_events (id, session_id, type, data, timestamp)
	          VALUES (?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		uuid.NewString(), event.SessionID, string(event.Type), string(data), event.Timestamp)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, sessionID string) ([]*domain.SessionEvent, error) {
	query := `SELECT session_id, type, data, timestamp
	          FROM session_events WHERE session_id = ?
	          ORDER BY timestamp ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*domain.SessionEvent
	for rows.Next() {
		var ev domain.SessionEvent
		var evType, data string
		if err := rows.Scan(&ev.SessionID, &evType, &data, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = domain.SessionEventType(evType)
		if data != "" && data != "null" {
			if err := json.Unmarshal([]byte(data), &ev.Data); err != nil {
				return nil, fmt.Errorf("unmarshal event data: %w", err)
			}
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
