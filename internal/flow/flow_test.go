package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
	"github.com/tjfontaine/interview-conductor/internal/retry"
	"github.com/tjfontaine/interview-conductor/internal/session"
)

type fakeSpeech struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeSpeech) Speak(ctx context.Context, text string, ssml bool) (*ports.SpeakResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, text)
	done := make(chan struct{})
	close(done)
	return &ports.SpeakResult{Completed: done}, nil
}

func (f *fakeSpeech) Close() error { return nil }

// spoken returns the lines with SSML wrapping stripped.
func (f *fakeSpeech) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lines))
	for i, l := range f.lines {
		l = strings.TrimPrefix(l, "<speak>")
		l = strings.TrimSuffix(l, "</speak>")
		out[i] = l
	}
	return out
}

// fakeListener pops one scripted answer per capture attempt. An empty
// string simulates silence: the stream closes without a final segment.
// Once the script is exhausted every capture is silent.
type fakeListener struct {
	mu      sync.Mutex
	answers []string
}

func (f *fakeListener) CaptureUtterance(ctx context.Context) (<-chan ports.TranscriptSegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan ports.TranscriptSegment, 2)
	if len(f.answers) == 0 {
		close(ch)
		return ch, nil
	}
	next := f.answers[0]
	f.answers = f.answers[1:]
	if next == "" {
		close(ch)
		return ch, nil
	}
	ch <- ports.TranscriptSegment{Text: "uh", Final: false}
	ch <- ports.TranscriptSegment{Text: next, Final: true}
	close(ch)
	return ch, nil
}

func (f *fakeListener) Close() error { return nil }

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	n       int
}

func (g *fakeGenerator) GenerateQuestion(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	g.n++
	return fmt.Sprintf("Generated question number %d?", g.n), nil
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

type fakeVoice struct {
	ch chan ports.VoiceEvent
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{ch: make(chan ports.VoiceEvent, 4)}
}

func (f *fakeVoice) Events() <-chan ports.VoiceEvent { return f.ch }

type recordCollector struct {
	mu   sync.Mutex
	recs []*domain.ResponseRecord
}

func (r *recordCollector) Record(ctx context.Context, rec *domain.ResponseRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
}

type eventCollector struct {
	mu     sync.Mutex
	events []*domain.SessionEvent
}

func (e *eventCollector) Publish(ctx context.Context, ev *domain.SessionEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *eventCollector) Close() error { return nil }

func (e *eventCollector) types() []domain.SessionEventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.SessionEventType, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

func instantSleep(ctx context.Context, d time.Duration) error { return nil }

type testHarness struct {
	speech   *fakeSpeech
	listener *fakeListener
	gen      *fakeGenerator
	voice    *fakeVoice
	records  *recordCollector
	events   *eventCollector
	orch     *Orchestrator
}

func newHarness(t *testing.T, plan domain.InterviewPlan, answers []string, clock session.Clock) *testHarness {
	t.Helper()
	h := &testHarness{
		speech:   &fakeSpeech{},
		listener: &fakeListener{answers: answers},
		gen:      &fakeGenerator{},
		voice:    newFakeVoice(),
		records:  &recordCollector{},
		events:   &eventCollector{},
	}

	opts := []session.Option{session.WithCandidateName("Alex")}
	if clock != nil {
		opts = append(opts, session.WithClock(clock))
	}
	st := session.New(plan, opts...)

	orch, err := New(Config{
		Plan: plan,
		Caps: ports.Capabilities{
			Speech:    h.speech,
			Listener:  h.listener,
			Generator: h.gen,
			Voice:     h.voice,
		},
		Records: h.records,
		Events:  h.events,
		State:   st,
		Exec:    retry.New(retry.WithSleep(instantSleep)),
		Sleep:   instantSleep,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.orch = orch
	return h
}

func testPlan() domain.InterviewPlan {
	return domain.InterviewPlan{
		RoleTitle:          "Software Engineer",
		SkillList:          []string{"Quantum Annealing"},
		ProjectNames:       []string{"Recommendation"},
		PlannedMinutes:     30,
		MaxExtendedMinutes: 34,
	}
}

func indexOf(lines []string, want string) int {
	for i, l := range lines {
		if l == want {
			return i
		}
	}
	return -1
}

func TestNewRejectsMissingCapabilities(t *testing.T) {
	_, err := New(Config{Plan: testPlan()})
	if err == nil {
		t.Fatal("New() error = nil, want fatal error for missing capabilities")
	}
	if !domain.IsFatal(err) {
		t.Errorf("New() error = %v, want fatal class", err)
	}
}

func TestRunHappyPathOrdering(t *testing.T) {
	answers := []string{
		"I am doing well today",
		"I have been building backend systems for six years now",
		"The role matches the systems work I enjoy most of all",
		"I used it on an optimization workload last year at work",
		"We tuned the schedule parameters over several experiments",
		"It gave a measurable improvement over simulated annealing",
		"That project served personalized rankings for our catalog",
		"We fed it implicit feedback signals from user activity",
		"It ran as a nightly batch job on our own infrastructure",
	}
	h := newHarness(t, testPlan(), answers, nil)

	outcome := h.orch.Run(context.Background())
	if outcome.Err != nil {
		t.Fatalf("Run() outcome error = %v", outcome.Err)
	}
	if !outcome.Completed {
		t.Fatal("Run() outcome not completed")
	}

	lines := h.speech.spoken()
	ordered := []string{
		"Good morning Alex, thank you for joining this interview for the Software Engineer position. How are you today?",
		"Great to hear! Let's begin.",
		"Tell me about yourself.",
		"Why are you interested in the Software Engineer role?",
		"Now let's talk about Quantum Annealing.",
		"Generated question number 1?",
		"I'd like to discuss your Recommendation project.",
		"Thank you, Alex. This concludes the interview. We'll be in touch soon.",
	}
	prev := -1
	for _, want := range ordered {
		i := indexOf(lines, want)
		if i < 0 {
			t.Fatalf("Run() never spoke %q\nspoken: %v", want, lines)
		}
		if i <= prev {
			t.Errorf("Run() spoke %q out of order (index %d, previous %d)", want, i, prev)
		}
		prev = i
	}

	if got := len(h.records.recs); got != len(answers) {
		t.Errorf("records = %d, want %d", got, len(answers))
	}
	for i, rec := range h.records.recs {
		if rec.Response != answers[i] {
			t.Errorf("record %d response = %q, want %q", i, rec.Response, answers[i])
		}
	}

	covered := h.orch.State().TopicsCovered()
	if len(covered) != 2 || covered[0] != "Quantum Annealing" || covered[1] != "Recommendation" {
		t.Errorf("topics covered = %v, want both topics in order", covered)
	}
	if h.orch.Phase() != domain.PhaseDone {
		t.Errorf("Phase() = %v, want done", h.orch.Phase())
	}
	if g := h.gen.calls(); g != 6 {
		t.Errorf("generator calls = %d, want 6", g)
	}

	types := h.events.types()
	if len(types) == 0 || types[0] != domain.SessionEventStarted {
		t.Fatalf("first event = %v, want session.started", types)
	}
	if types[len(types)-1] != domain.SessionEventCompleted {
		t.Errorf("last event = %v, want session.completed", types[len(types)-1])
	}
}

func TestRunAllSilent(t *testing.T) {
	plan := testPlan()
	plan.ProjectNames = nil
	h := newHarness(t, plan, nil, nil)

	outcome := h.orch.Run(context.Background())
	if outcome.Err != nil {
		t.Fatalf("Run() outcome error = %v", outcome.Err)
	}

	lines := h.speech.spoken()
	for _, want := range []string{
		lineGreetingReprompt,
		lineGreetingGiveUp,
		lineIntroSelfRephrase,
		lineIntroRoleRephrase,
		lineIntroGiveUp,
		lineReengage,
		"Have you used Quantum Annealing in any of your projects?",
		"Thank you, Alex. This concludes the interview. We'll be in touch soon.",
	} {
		if indexOf(lines, want) < 0 {
			t.Errorf("Run() never spoke %q", want)
		}
	}

	if n := len(h.records.recs); n != 0 {
		t.Errorf("records = %d, want 0", n)
	}
	if covered := h.orch.State().TopicsCovered(); len(covered) != 0 {
		t.Errorf("topics covered = %v, want none", covered)
	}
	if !outcome.Completed {
		t.Error("silent session should still complete")
	}
}

func TestRunSkipsTopicLoopWhenTimeExhausted(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	now := start
	clock := func() time.Time { return now }

	answers := []string{"I am doing well today", "", ""}
	h := newHarness(t, testPlan(), answers, clock)

	// Past the extended ceiling by the time topics would start.
	now = start.Add(33 * time.Minute)

	outcome := h.orch.Run(context.Background())
	if outcome.Err != nil {
		t.Fatalf("Run() outcome error = %v", outcome.Err)
	}

	lines := h.speech.spoken()
	if indexOf(lines, "Now let's talk about Quantum Annealing.") >= 0 {
		t.Error("topic transition spoken despite exhausted time")
	}
	if h.gen.calls() != 0 {
		t.Errorf("generator calls = %d, want 0", h.gen.calls())
	}
	if indexOf(lines, "Thank you, Alex. This concludes the interview. We'll be in touch soon.") < 0 {
		t.Error("closing line missing")
	}
}

func TestRunExtensionDeniedEndsTopic(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	elapsed := time.Duration(0)
	clock := func() time.Time { return start.Add(elapsed) }

	answers := []string{"I am doing well today", "", ""}
	h := newHarness(t, testPlan(), answers, clock)

	// Base time gone, extension window still open, but last quality is
	// normal so the grant is denied.
	elapsed = 30 * time.Minute

	outcome := h.orch.Run(context.Background())
	if outcome.Err != nil {
		t.Fatalf("Run() outcome error = %v", outcome.Err)
	}

	lines := h.speech.spoken()
	if indexOf(lines, "Now let's talk about Quantum Annealing.") < 0 {
		t.Error("topic transition missing; remaining-with-extension should still admit the topic")
	}
	if h.gen.calls() != 0 {
		t.Errorf("generator calls = %d, want 0 after denied extension", h.gen.calls())
	}
	if used := h.orch.State().ExtensionsUsed(); used != 0 {
		t.Errorf("extensions used = %d, want 0", used)
	}
}

func TestRunBriefAnswerTriggersFollowUp(t *testing.T) {
	plan := testPlan()
	plan.ProjectNames = nil
	answers := []string{
		"I am doing well today",
		"I have been building backend systems for six years now",
		"The role matches the systems work I enjoy most of all",
		"not really sure", // brief
		"We used it to schedule jobs across a mixed fleet of machines",
		"It reduced queue latency for the largest tenant workloads",
	}
	h := newHarness(t, plan, answers, nil)

	outcome := h.orch.Run(context.Background())
	if outcome.Err != nil {
		t.Fatalf("Run() outcome error = %v", outcome.Err)
	}

	var followPrompt string
	for _, p := range h.gen.prompts {
		if strings.Contains(p, "brief or uncertain response: 'not really sure'") {
			followPrompt = p
		}
	}
	if followPrompt == "" {
		t.Fatalf("no follow-up prompt generated; prompts = %d", len(h.gen.prompts))
	}

	// brief answer + follow-up consume two of the three topic slots.
	if g := h.gen.calls(); g != 3 {
		t.Errorf("generator calls = %d, want 3 (question, follow-up, final question)", g)
	}
	if n := len(h.records.recs); n != 6 {
		t.Errorf("records = %d, want 6", n)
	}
}

func TestRunExtensionGrantedOnDetailedAnswer(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	elapsed := time.Duration(0)
	clock := func() time.Time { return start.Add(elapsed) }

	plan := testPlan()
	plan.SkillList = []string{"Quantum Annealing", "Stream Processing", "Columnar Storage"}
	plan.ProjectNames = []string{"Recommendation"}

	detailed := "I designed and implemented the ingestion path myself, and we optimized the hot loop until it held up under production load without falling behind."
	answers := []string{
		"I am doing well today",
		"I have been building backend systems for six years now",
		"The role matches the systems work I enjoy most of all",
		detailed,
	}
	h := newHarness(t, plan, answers, clock)

	// Inside the base window but within three minutes of its end.
	elapsed = 28 * time.Minute

	outcome := h.orch.Run(context.Background())
	if outcome.Err != nil {
		t.Fatalf("Run() outcome error = %v", outcome.Err)
	}

	lines := h.speech.spoken()
	if indexOf(lines, lineEncouragement) < 0 {
		t.Errorf("encouraging line missing after detailed answer; spoken = %v", lines)
	}
	if used := h.orch.State().ExtensionsUsed(); used < 1 {
		t.Errorf("extensions used = %d, want at least 1", used)
	}

	var sawGrant bool
	for _, typ := range h.events.types() {
		if typ == domain.SessionEventExtensionGranted {
			sawGrant = true
		}
	}
	if !sawGrant {
		t.Error("no extension_granted event published")
	}
}

func TestWatcherSpeaksOnFalseInterruption(t *testing.T) {
	speech := &fakeSpeech{}
	speaker := NewSpeaker(speech, retry.New(retry.WithSleep(instantSleep)),
		WithSpeakerSleep(instantSleep))
	voice := newFakeVoice()
	w := NewWatcher(voice, speaker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	voice.ch <- ports.VoiceEvent{Type: ports.VoiceSpeechStarted}
	voice.ch <- ports.VoiceEvent{Type: ports.VoiceFalseInterruption}
	close(voice.ch)
	<-done
	cancel()

	lines := speech.spoken()
	if indexOf(lines, linePleaseContinue) < 0 {
		t.Errorf("watcher spoke %v, want %q", lines, linePleaseContinue)
	}
	if len(lines) != 1 {
		t.Errorf("watcher spoke %d lines, want 1", len(lines))
	}
}

func TestExtensionPolicy(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	elapsed := time.Duration(0)
	clock := func() time.Time { return start.Add(elapsed) }

	plan := testPlan()
	plan.SkillList = []string{"A", "B", "C", "D"}
	plan.ProjectNames = nil
	st := session.New(plan, session.WithClock(clock))

	if shouldExtend(st, domain.QualityNormal) {
		t.Error("shouldExtend() = true for normal quality")
	}
	if !shouldExtend(st, domain.QualityDetailed) {
		t.Error("shouldExtend() = false for detailed quality with uncovered topics")
	}

	st.MarkTopicCovered("A")
	st.MarkTopicCovered("B")
	if shouldExtend(st, domain.QualityExcellent) {
		t.Error("shouldExtend() = true with only 2 uncovered topics")
	}

	st2 := session.New(plan, session.WithClock(clock))
	elapsed = 35 * time.Minute // past the 34.5 minute ceiling
	if extensionPermitted(st2) {
		t.Error("extensionPermitted() = true past the extended ceiling")
	}

	elapsed = 10 * time.Minute
	st2.GrantExtension()
	st2.GrantExtension()
	if extensionPermitted(st2) {
		t.Error("extensionPermitted() = true after max extensions")
	}
}
