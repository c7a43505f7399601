// Package session tracks the mutable state of one interview: elapsed time,
// covered topics, granted extensions, and the response log. The flow
// orchestrator is the single writer; the notification task only reads
// snapshots, so the state is guarded by an RWMutex.
package session

import (
	"math"
	"strings"
	"time"

	"sync"

	"github.com/google/uuid"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
)

// MaxExtensions is the hard cap on extensions per session.
const MaxExtensions = 2

// Clock returns the current instant. Injectable for tests.
type Clock func() time.Time

// State is the per-session mutable record.
type State struct {
	mu sync.RWMutex

	sessionID     string
	plan          domain.InterviewPlan
	clock         Clock
	start         time.Time
	candidateName string

	covered        []string
	coveredSet     map[string]struct{}
	extensionsUsed int
	responses      []*domain.ResponseRecord
	lastQuality    domain.QualityLabel
}

// Option configures a State.
type Option func(*State)

// WithClock sets the time source.
func WithClock(clock Clock) Option {
	return func(s *State) {
		s.clock = clock
	}
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) Option {
	return func(s *State) {
		s.sessionID = id
	}
}

// WithCandidateName sets the candidate's name from the resume. A "my name
// is" introduction during the session overrides it.
func WithCandidateName(name string) Option {
	return func(s *State) {
		s.candidateName = name
	}
}

// New creates the session state and stamps the start instant.
func New(plan domain.InterviewPlan, opts ...Option) *State {
	s := &State{
		sessionID:     uuid.New().String(),
		plan:          plan,
		clock:         time.Now,
		candidateName: "Candidate",
		coveredSet:    make(map[string]struct{}),
		lastQuality:   domain.QualityNormal,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.start = s.clock()
	return s
}

// ID returns the opaque session identifier.
func (s *State) ID() string {
	return s.sessionID
}

// Plan returns the immutable session plan.
func (s *State) Plan() domain.InterviewPlan {
	return s.plan
}

// StartTime returns the session start instant.
func (s *State) StartTime() time.Time {
	return s.start
}

// CandidateName returns the current candidate name.
func (s *State) CandidateName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.candidateName
}

// ElapsedSeconds returns seconds since session start.
func (s *State) ElapsedSeconds() float64 {
	return s.clock().Sub(s.start).Seconds()
}

// RemainingBase returns minutes left against the planned duration. Negative
// once the base budget is exhausted.
func (s *State) RemainingBase() float64 {
	return (s.plan.PlannedSeconds() - s.ElapsedSeconds()) / 60
}

// RemainingWithExtension returns minutes left against the extended ceiling.
func (s *State) RemainingWithExtension() float64 {
	return (s.plan.ExtendedSeconds() - s.ElapsedSeconds()) / 60
}

// MarkTopicCovered records a topic as discussed. Duplicate marks are safe.
func (s *State) MarkTopicCovered(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coveredSet[topic]; ok {
		return
	}
	s.coveredSet[topic] = struct{}{}
	s.covered = append(s.covered, topic)
}

// TopicsCovered returns covered topics in the order they were first marked.
func (s *State) TopicsCovered() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.covered))
	copy(out, s.covered)
	return out
}

// UncoveredCount counts topics from the full topic list not yet covered.
func (s *State) UncoveredCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, topic := range s.plan.Topics() {
		if _, ok := s.coveredSet[topic]; !ok {
			count++
		}
	}
	return count
}

// ExtensionsUsed returns the number of extensions granted so far.
func (s *State) ExtensionsUsed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.extensionsUsed
}

// GrantExtension consumes one extension slot. It returns false once the
// cap is reached, regardless of what the caller's policy decided.
func (s *State) GrantExtension() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extensionsUsed >= MaxExtensions {
		return false
	}
	s.extensionsUsed++
	return true
}

// LastQuality returns the most recent classified answer quality. Normal
// before any answer has been classified.
func (s *State) LastQuality() domain.QualityLabel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastQuality
}

// SetLastQuality records the quality of the latest accepted answer.
func (s *State) SetLastQuality(q domain.QualityLabel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuality = q
}

// AppendResponse stamps and appends an accepted answer, updating the
// candidate name when the answer introduces one ("my name is ...") and the
// question was not itself asking for a name. The returned record is what
// the recorder hands to the persistence sinks.
func (s *State) AppendResponse(question, answer string) *domain.ResponseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name := extractName(question, answer); name != "" {
		s.candidateName = name
	}

	rec := &domain.ResponseRecord{
		SessionID: s.sessionID,
		Question:  question,
		Response:  answer,
		Timestamp: s.clock(),
	}
	s.responses = append(s.responses, rec)
	return rec
}

// Responses returns the response log in append order.
func (s *State) Responses() []*domain.ResponseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.ResponseRecord, len(s.responses))
	copy(out, s.responses)
	return out
}

// RecentResponses returns up to n of the latest records, oldest first.
func (s *State) RecentResponses(n int) []*domain.ResponseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.responses) {
		n = len(s.responses)
	}
	out := make([]*domain.ResponseRecord, n)
	copy(out, s.responses[len(s.responses)-n:])
	return out
}

func extractName(question, answer string) string {
	lowerAnswer := strings.ToLower(answer)
	idx := strings.Index(lowerAnswer, "my name is")
	if idx < 0 || strings.Contains(strings.ToLower(question), "name") {
		return ""
	}
	rest := strings.TrimSpace(answer[idx+len("my name is"):])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Progress is a read-only snapshot of session progress.
type Progress struct {
	ElapsedMinutes   float64 `json:"elapsed_minutes"`
	PlannedMinutes   int     `json:"planned_duration"`
	RemainingMinutes float64 `json:"remaining_minutes"`
	ProgressPercent  float64 `json:"progress_percent"`
	TopicsCovered    int     `json:"topics_covered"`
	TotalTopics      int     `json:"total_topics"`
	ExtensionsUsed   int     `json:"extensions_used"`
}

// Progress computes the current snapshot. Percent is capped at 100; the
// session can legitimately run past the planned duration on extensions.
func (s *State) Progress() Progress {
	s.mu.RLock()
	covered := len(s.covered)
	used := s.extensionsUsed
	s.mu.RUnlock()

	elapsed := s.ElapsedSeconds() / 60
	percent := math.Min(100, elapsed/float64(s.plan.PlannedMinutes)*100)

	return Progress{
		ElapsedMinutes:   round1(elapsed),
		PlannedMinutes:   s.plan.PlannedMinutes,
		RemainingMinutes: round1(s.RemainingBase()),
		ProgressPercent:  round1(percent),
		TopicsCovered:    covered,
		TotalTopics:      len(s.plan.Topics()),
		ExtensionsUsed:   used,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
