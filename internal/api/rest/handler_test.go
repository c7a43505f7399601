package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/interview-conductor/internal/config"
	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/storage/memory"
)

type testAPI struct {
	store  *memory.Store
	router *chi.Mux
	now    time.Time
}

func newTestAPI(t *testing.T, opts ...Option) *testAPI {
	t.Helper()

	api := &testAPI{
		store: memory.New(),
		now:   time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}
	t.Cleanup(func() { api.store.Close() })

	opts = append(opts, WithClock(func() time.Time { return api.now }))
	h := NewHandler(api.store, nil, opts...)

	api.router = chi.NewRouter()
	h.Register(api.router)
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["time"] == "" {
		t.Error("time field missing")
	}
}

func TestCreateInterview(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/interviews", map[string]any{
		"candidateName": "Jordan Lee",
		"position":      "Backend Engineer",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	created := decodeBody[domain.Interview](t, rec)
	if created.ID == "" {
		t.Error("ID not assigned")
	}
	if created.Status != domain.StatusScheduled {
		t.Errorf("Status = %v, want %v", created.Status, domain.StatusScheduled)
	}
	if created.Duration != 60 {
		t.Errorf("Duration = %d, want default 60", created.Duration)
	}
	if !created.ScheduledAt.Equal(api.now) {
		t.Errorf("ScheduledAt = %v, want %v", created.ScheduledAt, api.now)
	}

	// camelCase wire format
	if !strings.Contains(rec.Body.String(), `"candidateName":"Jordan Lee"`) {
		t.Errorf("body missing camelCase candidateName: %s", rec.Body.String())
	}
}

func TestCreateInterviewValidation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing candidate", body: map[string]any{"position": "Engineer"}},
		{name: "missing position", body: map[string]any{"candidateName": "Jordan"}},
		{name: "blank candidate", body: map[string]any{"candidateName": "  ", "position": "Engineer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/interviews", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestCreateInterviewSettingsDurationOverrides(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/interviews", map[string]any{
		"candidateName": "Jordan Lee",
		"position":      "Backend Engineer",
		"duration":      30,
		"settings":      map[string]any{"duration": 90, "topics": []string{"Go"}},
	})
	created := decodeBody[domain.Interview](t, rec)
	if created.Duration != 90 {
		t.Errorf("Duration = %d, want 90 from settings", created.Duration)
	}
}

func TestGetInterviewNotFound(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/interviews/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["detail"] != "Interview not found" {
		t.Errorf("detail = %v, want Interview not found", body["detail"])
	}
}

func TestStartInterview(t *testing.T) {
	api := newTestAPI(t, WithRoom(config.RoomConfig{
		URL:   "wss://media.example.com",
		Token: "preissued-token",
	}))

	created := decodeBody[domain.Interview](t, api.do(t, http.MethodPost, "/interviews", map[string]any{
		"candidateName": "Jordan Lee",
		"position":      "Backend Engineer",
		"settings":      map[string]any{"topics": []string{"Goroutines", "GC"}},
	}))

	rec := api.do(t, http.MethodPost, "/interviews/"+created.ID+"/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	creds := decodeBody[domain.RoomCredentials](t, rec)
	if creds.RoomName != "interview-"+created.ID {
		t.Errorf("RoomName = %v, want interview-%s", creds.RoomName, created.ID)
	}
	wantIdentity := "candidate-jordan-lee-" + created.ID[:8]
	if creds.ParticipantIdentity != wantIdentity {
		t.Errorf("ParticipantIdentity = %v, want %v", creds.ParticipantIdentity, wantIdentity)
	}
	if creds.Token != "preissued-token" || creds.URL != "wss://media.example.com" {
		t.Errorf("credentials = %+v, want configured token and URL", creds)
	}

	stored, err := api.store.GetInterview(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetInterview() error = %v", err)
	}
	if stored.Status != domain.StatusInProgress {
		t.Errorf("Status = %v, want %v", stored.Status, domain.StatusInProgress)
	}
	if stored.LiveStatus == nil || stored.LiveStatus.CurrentTopic != "Goroutines" {
		t.Errorf("LiveStatus = %+v, want current topic Goroutines", stored.LiveStatus)
	}
}

func TestStartInterviewMockCredentials(t *testing.T) {
	api := newTestAPI(t)

	created := decodeBody[domain.Interview](t, api.do(t, http.MethodPost, "/interviews", map[string]any{
		"candidateName": "Jordan Lee",
		"position":      "Backend Engineer",
	}))

	creds := decodeBody[domain.RoomCredentials](t, api.do(t, http.MethodPost, "/interviews/"+created.ID+"/start", nil))
	if creds.URL != "wss://demo.livekit.io" {
		t.Errorf("URL = %v, want mock default", creds.URL)
	}
	if !strings.HasPrefix(creds.Token, "mock-token-") {
		t.Errorf("Token = %v, want mock-token- prefix", creds.Token)
	}
}

func TestStopInterview(t *testing.T) {
	api := newTestAPI(t)

	created := decodeBody[domain.Interview](t, api.do(t, http.MethodPost, "/interviews", map[string]any{
		"candidateName": "Jordan Lee",
		"position":      "Backend Engineer",
	}))
	api.do(t, http.MethodPost, "/interviews/"+created.ID+"/start", nil)

	rec := api.do(t, http.MethodPost, "/interviews/"+created.ID+"/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["status"] != "stopped" {
		t.Errorf("status = %v, want stopped", body["status"])
	}

	stored, _ := api.store.GetInterview(context.Background(), created.ID)
	if stored.Status != domain.StatusCompleted {
		t.Errorf("Status = %v, want %v", stored.Status, domain.StatusCompleted)
	}
	if stored.LiveStatus == nil || stored.LiveStatus.StartedAt == nil {
		t.Error("stop dropped the original startedAt")
	}
	if stored.LiveStatus.ProgressPercent == nil || *stored.LiveStatus.ProgressPercent != 100.0 {
		t.Errorf("ProgressPercent = %v, want 100", stored.LiveStatus.ProgressPercent)
	}
}

func TestStatusRecomputesProgress(t *testing.T) {
	api := newTestAPI(t)

	created := decodeBody[domain.Interview](t, api.do(t, http.MethodPost, "/interviews", map[string]any{
		"candidateName": "Jordan Lee",
		"position":      "Backend Engineer",
		"duration":      30,
	}))
	api.do(t, http.MethodPost, "/interviews/"+created.ID+"/start", nil)

	// 15 of 30 minutes elapsed
	api.now = api.now.Add(15 * time.Minute)

	live := decodeBody[domain.LiveStatus](t, api.do(t, http.MethodGet, "/interviews/"+created.ID+"/status", nil))
	if live.Status != domain.StatusInProgress {
		t.Errorf("Status = %v, want %v", live.Status, domain.StatusInProgress)
	}
	if live.ProgressPercent == nil || *live.ProgressPercent != 50.0 {
		t.Errorf("ProgressPercent = %v, want 50", live.ProgressPercent)
	}
	if live.RemainingSeconds == nil || *live.RemainingSeconds != 900 {
		t.Errorf("RemainingSeconds = %v, want 900", live.RemainingSeconds)
	}
}

func TestStatusBeforeStart(t *testing.T) {
	api := newTestAPI(t)

	created := decodeBody[domain.Interview](t, api.do(t, http.MethodPost, "/interviews", map[string]any{
		"candidateName": "Jordan Lee",
		"position":      "Backend Engineer",
	}))

	live := decodeBody[domain.LiveStatus](t, api.do(t, http.MethodGet, "/interviews/"+created.ID+"/status", nil))
	if live.Status != domain.StatusScheduled {
		t.Errorf("Status = %v, want %v", live.Status, domain.StatusScheduled)
	}
	if live.ProgressPercent != nil {
		t.Errorf("ProgressPercent = %v, want nil before start", live.ProgressPercent)
	}
}

func TestTranscript(t *testing.T) {
	api := newTestAPI(t)

	created := decodeBody[domain.Interview](t, api.do(t, http.MethodPost, "/interviews", map[string]any{
		"candidateName": "Jordan Lee",
		"position":      "Backend Engineer",
	}))

	entry := &domain.TranscriptEntry{Speaker: domain.SpeakerInterviewer, Text: "Hello Jordan."}
	if err := api.store.AppendTranscriptEntry(context.Background(), created.ID, entry); err != nil {
		t.Fatalf("AppendTranscriptEntry() error = %v", err)
	}

	rec := api.do(t, http.MethodGet, "/interviews/"+created.ID+"/transcript", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		InterviewID string                   `json:"interviewId"`
		Candidate   string                   `json:"candidate"`
		Entries     []domain.TranscriptEntry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if body.InterviewID != created.ID || body.Candidate != "Jordan Lee" {
		t.Errorf("envelope = %+v, want interview ID and candidate name", body)
	}
	if len(body.Entries) != 1 || body.Entries[0].Text != "Hello Jordan." {
		t.Errorf("Entries = %v, want the appended line", body.Entries)
	}
}

func TestMetrics(t *testing.T) {
	api := newTestAPI(t)

	for _, seed := range []struct {
		position string
		status   domain.InterviewStatus
		duration int
	}{
		{"Backend Engineer", domain.StatusCompleted, 60},
		{"Backend Engineer", domain.StatusInProgress, 30},
		{"Frontend Engineer", domain.StatusScheduled, 45},
	} {
		created := decodeBody[domain.Interview](t, api.do(t, http.MethodPost, "/interviews", map[string]any{
			"candidateName": "Candidate",
			"position":      seed.position,
			"duration":      seed.duration,
		}))
		if seed.status != domain.StatusScheduled {
			stored, _ := api.store.GetInterview(context.Background(), created.ID)
			stored.Status = seed.status
			if err := api.store.UpdateInterview(context.Background(), stored); err != nil {
				t.Fatalf("UpdateInterview() error = %v", err)
			}
		}
	}

	metrics := decodeBody[domain.InterviewMetrics](t, api.do(t, http.MethodGet, "/interviews/metrics", nil))
	if metrics.TotalInterviews != 3 {
		t.Errorf("TotalInterviews = %d, want 3", metrics.TotalInterviews)
	}
	if metrics.ActiveInterviews != 1 {
		t.Errorf("ActiveInterviews = %d, want 1", metrics.ActiveInterviews)
	}
	if metrics.CompletionRate < 0.33 || metrics.CompletionRate > 0.34 {
		t.Errorf("CompletionRate = %v, want 1/3", metrics.CompletionRate)
	}
	if metrics.AverageDuration == nil || *metrics.AverageDuration != 45.0 {
		t.Errorf("AverageDuration = %v, want 45", metrics.AverageDuration)
	}
	if len(metrics.InterviewsByRole) != 2 {
		t.Fatalf("InterviewsByRole count = %d, want 2", len(metrics.InterviewsByRole))
	}
	if metrics.InterviewsByRole[0].Role != "Backend Engineer" || metrics.InterviewsByRole[0].Count != 2 {
		t.Errorf("InterviewsByRole[0] = %+v, want Backend Engineer x2", metrics.InterviewsByRole[0])
	}
}

func TestMetricsEmpty(t *testing.T) {
	api := newTestAPI(t)

	metrics := decodeBody[domain.InterviewMetrics](t, api.do(t, http.MethodGet, "/interviews/metrics", nil))
	if metrics.TotalInterviews != 0 || metrics.CompletionRate != 0 {
		t.Errorf("metrics = %+v, want zero values", metrics)
	}
	if metrics.AverageDuration != nil {
		t.Errorf("AverageDuration = %v, want nil with no interviews", metrics.AverageDuration)
	}
}

func TestListTemplates(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/templates", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	list := decodeBody[[]domain.InterviewTemplate](t, rec)
	if len(list) != 2 {
		t.Fatalf("templates count = %d, want 2", len(list))
	}
	if list[0].ID != "template-frontend" || list[1].ID != "template-llm" {
		t.Errorf("template IDs = %v, %v, want built-ins", list[0].ID, list[1].ID)
	}
}

func TestListInterviewsEmptyIsArray(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/interviews", nil)
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}
