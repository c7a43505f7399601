package domain

import "time"

// QualityLabel is the coarse classification of an answer's depth. It drives
// follow-up and extension decisions only; it is never stored apart from the
// answer it was computed from.
type QualityLabel string

const (
	QualityBrief     QualityLabel = "brief"
	QualityNormal    QualityLabel = "normal"
	QualityDetailed  QualityLabel = "detailed"
	QualityExcellent QualityLabel = "excellent"
)

// ResponseRecord is one accepted answer. Records are immutable once
// appended and are handed to the persistence sinks in chronological order,
// exactly once each.
type ResponseRecord struct {
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptEntry is one spoken line of the session as exposed by the
// record API, attributed to a speaker ("interviewer" or "candidate").
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
}

const (
	SpeakerInterviewer = "interviewer"
	SpeakerCandidate   = "candidate"
)
