// Package rest implements the interview record API: scheduling, lifecycle
// control, live status, transcripts, metrics, and templates.
package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tjfontaine/interview-conductor/internal/config"
	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
	"github.com/tjfontaine/interview-conductor/internal/server"
	"github.com/tjfontaine/interview-conductor/internal/templates"
)

const defaultRoomURL = "wss://demo.livekit.io"

// Handler serves the record API over a StorageProvider.
type Handler struct {
	store     ports.StorageProvider
	templates *templates.Registry
	room      config.RoomConfig
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithRoom configures the media-room credentials returned by the start
// endpoint. Without it, mock values are returned.
func WithRoom(room config.RoomConfig) Option {
	return func(h *Handler) { h.room = room }
}

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewHandler builds the record API handler.
func NewHandler(store ports.StorageProvider, registry *templates.Registry, opts ...Option) *Handler {
	h := &Handler{
		store:     store,
		templates: registry,
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	if h.templates == nil {
		h.templates = templates.New(nil)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the record API routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/interviews", h.handleListInterviews)
	r.Post("/interviews", h.handleCreateInterview)
	r.Get("/interviews/metrics", h.handleMetrics)
	r.Get("/interviews/{interview_id}", h.handleGetInterview)
	r.Post("/interviews/{interview_id}/start", h.handleStartInterview)
	r.Post("/interviews/{interview_id}/stop", h.handleStopInterview)
	r.Get("/interviews/{interview_id}/status", h.handleStatus)
	r.Get("/interviews/{interview_id}/transcript", h.handleTranscript)
	r.Get("/templates", h.handleListTemplates)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   h.now().Format(time.RFC3339Nano),
	})
}

func (h *Handler) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	interviews, err := h.store.ListInterviews(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if interviews == nil {
		interviews = []*domain.Interview{}
	}
	writeJSON(w, http.StatusOK, interviews)
}

// createInterviewRequest mirrors the scheduling payload. Duration defaults
// to 60 minutes; settings.duration overrides it when present.
type createInterviewRequest struct {
	CandidateName  string                     `json:"candidateName"`
	Position       string                     `json:"position"`
	Duration       int                        `json:"duration"`
	ScheduledAt    *time.Time                 `json:"scheduledAt"`
	JobDescription string                     `json:"jobDescription"`
	Resume         string                     `json:"resume"`
	Settings       *domain.InterviewSettings  `json:"settings"`
	Metadata       map[string]json.RawMessage `json:"metadata"`
}

func (h *Handler) handleCreateInterview(w http.ResponseWriter, r *http.Request) {
	var req createInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.CandidateName) == "" {
		writeError(w, http.StatusBadRequest, "candidateName is required")
		return
	}
	if strings.TrimSpace(req.Position) == "" {
		writeError(w, http.StatusBadRequest, "position is required")
		return
	}

	duration := req.Duration
	if duration <= 0 {
		duration = 60
	}
	if req.Settings != nil && req.Settings.Duration > 0 {
		duration = req.Settings.Duration
	}

	scheduledAt := h.now()
	if req.ScheduledAt != nil {
		scheduledAt = *req.ScheduledAt
	}

	iv := &domain.Interview{
		ID:                uuid.NewString(),
		CandidateName:     req.CandidateName,
		Position:          req.Position,
		ScheduledAt:       scheduledAt,
		Duration:          duration,
		Status:            domain.StatusScheduled,
		JobDescription:    req.JobDescription,
		Resume:            req.Resume,
		Settings:          req.Settings,
		TranscriptEntries: []domain.TranscriptEntry{},
	}

	if err := h.store.CreateInterview(r.Context(), iv); err != nil {
		h.serverError(w, r, err)
		return
	}

	server.AddLogField(r.Context(), "interview_id", iv.ID)
	writeJSON(w, http.StatusCreated, iv)
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	interviews, err := h.store.ListInterviews(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, calculateMetrics(interviews))
}

func (h *Handler) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.findInterview(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (h *Handler) handleStartInterview(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.findInterview(w, r)
	if !ok {
		return
	}

	now := h.now()
	currentTopic := ""
	if iv.Settings != nil && len(iv.Settings.Topics) > 0 {
		currentTopic = iv.Settings.Topics[0]
	}

	progress := 0.0
	remaining := iv.Duration * 60
	iv.Status = domain.StatusInProgress
	iv.LiveStatus = &domain.LiveStatus{
		Status:           domain.StatusInProgress,
		StartedAt:        &now,
		ProgressPercent:  &progress,
		RemainingSeconds: &remaining,
		CurrentTopic:     currentTopic,
	}

	if err := h.store.UpdateInterview(r.Context(), iv); err != nil {
		h.serverError(w, r, err)
		return
	}

	server.AddLogField(r.Context(), "interview_id", iv.ID)
	writeJSON(w, http.StatusOK, h.roomCredentials(iv))
}

func (h *Handler) handleStopInterview(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.findInterview(w, r)
	if !ok {
		return
	}

	now := h.now()
	var startedAt *time.Time
	if iv.LiveStatus != nil {
		startedAt = iv.LiveStatus.StartedAt
	}

	progress := 100.0
	remaining := 0
	iv.Status = domain.StatusCompleted
	iv.LiveStatus = &domain.LiveStatus{
		Status:           domain.StatusCompleted,
		StartedAt:        startedAt,
		EndedAt:          &now,
		ProgressPercent:  &progress,
		RemainingSeconds: &remaining,
	}

	if err := h.store.UpdateInterview(r.Context(), iv); err != nil {
		h.serverError(w, r, err)
		return
	}

	server.AddLogField(r.Context(), "interview_id", iv.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.findInterview(w, r)
	if !ok {
		return
	}

	if iv.LiveStatus == nil {
		writeJSON(w, http.StatusOK, &domain.LiveStatus{Status: iv.Status})
		return
	}

	// Progress and remaining time are recomputed from elapsed wall time,
	// never trusted from the stored snapshot.
	live := *iv.LiveStatus
	if live.StartedAt != nil && iv.Status == domain.StatusInProgress {
		elapsed := h.now().Sub(*live.StartedAt).Seconds()
		totalSeconds := float64(iv.Duration * 60)

		progress := 0.0
		if totalSeconds > 0 {
			progress = min(100.0, elapsed/totalSeconds*100)
		}
		remaining := max(0, int(totalSeconds-elapsed))
		live.ProgressPercent = &progress
		live.RemainingSeconds = &remaining
	}

	writeJSON(w, http.StatusOK, &live)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.findInterview(w, r)
	if !ok {
		return
	}

	entries := iv.TranscriptEntries
	if entries == nil {
		entries = []domain.TranscriptEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"interviewId": iv.ID,
		"candidate":   iv.CandidateName,
		"entries":     entries,
	})
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.templates.List())
}

func (h *Handler) findInterview(w http.ResponseWriter, r *http.Request) (*domain.Interview, bool) {
	id := chi.URLParam(r, "interview_id")
	iv, err := h.store.GetInterview(r.Context(), id)
	if errors.Is(err, domain.ErrInterviewNotFound) {
		writeError(w, http.StatusNotFound, "Interview not found")
		return nil, false
	}
	if err != nil {
		h.serverError(w, r, err)
		return nil, false
	}
	return iv, true
}

// roomCredentials builds the join credentials for an interview's media
// room. With no configured token, mock values are returned so the UI can
// be exercised without a live media deployment.
func (h *Handler) roomCredentials(iv *domain.Interview) domain.RoomCredentials {
	slug := strings.ReplaceAll(strings.ToLower(iv.CandidateName), " ", "-")
	shortID := iv.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	creds := domain.RoomCredentials{
		RoomName:            "interview-" + iv.ID,
		ParticipantIdentity: "candidate-" + slug + "-" + shortID,
		URL:                 h.room.URL,
		Token:               h.room.Token,
	}
	if creds.URL == "" {
		creds.URL = defaultRoomURL
	}
	if creds.Token == "" {
		creds.Token = "mock-token-" + uuid.NewString()
	}
	return creds
}

func calculateMetrics(interviews []*domain.Interview) domain.InterviewMetrics {
	total := len(interviews)
	active := 0
	completed := 0
	durationSum := 0

	roleOrder := []string{}
	roleCounts := map[string]int{}

	for _, iv := range interviews {
		switch iv.Status {
		case domain.StatusInProgress, domain.StatusPreparing:
			active++
		case domain.StatusCompleted:
			completed++
		}
		durationSum += iv.Duration

		if _, seen := roleCounts[iv.Position]; !seen {
			roleOrder = append(roleOrder, iv.Position)
		}
		roleCounts[iv.Position]++
	}

	metrics := domain.InterviewMetrics{
		TotalInterviews:  total,
		ActiveInterviews: active,
		InterviewsByRole: []domain.RoleCount{},
	}
	if total > 0 {
		metrics.CompletionRate = float64(completed) / float64(total)
		avg := float64(durationSum) / float64(total)
		metrics.AverageDuration = &avg
	}
	for _, role := range roleOrder {
		metrics.InterviewsByRole = append(metrics.InterviewsByRole, domain.RoleCount{
			Role:  role,
			Count: roleCounts[role],
		})
	}
	return metrics
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)
	h.logger.Error("record api error",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
