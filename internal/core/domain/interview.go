package domain

import "time"

// InterviewStatus tracks an interview through the record API lifecycle.
type InterviewStatus string

const (
	StatusScheduled  InterviewStatus = "scheduled"
	StatusPreparing  InterviewStatus = "preparing"
	StatusInProgress InterviewStatus = "in_progress"
	StatusCompleted  InterviewStatus = "completed"
	StatusCancelled  InterviewStatus = "cancelled"
	StatusFailed     InterviewStatus = "failed"
)

// InterviewSettings carries the per-interview knobs supplied at scheduling
// time. Duration is in minutes and overrides the planner when set by the
// caller (the planner's custom-duration path).
type InterviewSettings struct {
	Duration         int      `json:"duration"`
	DurationUnit     string   `json:"durationUnit"`
	Topics           []string `json:"topics"`
	Difficulty       string   `json:"difficulty"`
	IncludeVideo     bool     `json:"includeVideo"`
	IncludeAudio     bool     `json:"includeAudio"`
	AutoEvaluation   bool     `json:"autoEvaluation"`
	Language         string   `json:"language,omitempty"`
	Timezone         string   `json:"timezone,omitempty"`
	RemindersEnabled bool     `json:"remindersEnabled"`
}

// LiveStatus is the in-flight view of a running interview. Progress and
// remaining time are recomputed from elapsed wall time on read.
type LiveStatus struct {
	Status           InterviewStatus `json:"status"`
	StartedAt        *time.Time      `json:"startedAt,omitempty"`
	EndedAt          *time.Time      `json:"endedAt,omitempty"`
	ProgressPercent  *float64        `json:"progressPercent,omitempty"`
	RemainingSeconds *int            `json:"remainingSeconds,omitempty"`
	CurrentTopic     string          `json:"currentTopic,omitempty"`
}

// Interview is the record API resource: one scheduled or completed session
// with its settings, live status, and transcript.
type Interview struct {
	ID                string             `json:"id"`
	CandidateName     string             `json:"candidateName"`
	Position          string             `json:"position"`
	ScheduledAt       time.Time          `json:"scheduledAt"`
	Duration          int                `json:"duration"`
	Status            InterviewStatus    `json:"status"`
	JobDescription    string             `json:"jobDescription,omitempty"`
	Resume            string             `json:"resume,omitempty"`
	Settings          *InterviewSettings `json:"settings,omitempty"`
	LiveStatus        *LiveStatus        `json:"liveStatus,omitempty"`
	TranscriptEntries []TranscriptEntry  `json:"transcriptEntries"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// RoomCredentials is what the start endpoint returns so a client can join
// the session's media room. Token issuance itself is out of scope; the
// credentials are either pre-issued via configuration or mock values.
type RoomCredentials struct {
	Token               string `json:"token"`
	URL                 string `json:"url"`
	RoomName            string `json:"roomName"`
	ParticipantIdentity string `json:"participantIdentity"`
}

// InterviewTemplate is a reusable interview preset exposed by the API.
type InterviewTemplate struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Role        string            `json:"role"`
	Description string            `json:"description,omitempty"`
	Settings    InterviewSettings `json:"settings"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// RoleCount is one bucket of the per-role metrics breakdown.
type RoleCount struct {
	Role  string `json:"role"`
	Count int    `json:"count"`
}

// InterviewMetrics is the aggregate view over all stored interviews.
type InterviewMetrics struct {
	TotalInterviews  int         `json:"totalInterviews"`
	ActiveInterviews int         `json:"activeInterviews"`
	CompletionRate   float64     `json:"completionRate"`
	AverageScore     *float64    `json:"averageScore"`
	AverageDuration  *float64    `json:"averageDuration"`
	InterviewsByRole []RoleCount `json:"interviewsByRole"`
}
