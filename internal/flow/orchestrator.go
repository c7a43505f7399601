// Package flow drives one interview session end to end: greeting,
// introduction, the adaptive topic loop, and closing. All capability access
// goes through retry-wrapped wrappers so the candidate never sees a raw
// failure.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
	"github.com/tjfontaine/interview-conductor/internal/prompt"
	"github.com/tjfontaine/interview-conductor/internal/quality"
	"github.com/tjfontaine/interview-conductor/internal/questionbank"
	"github.com/tjfontaine/interview-conductor/internal/retry"
	"github.com/tjfontaine/interview-conductor/internal/session"
)

// maxQuestionsPerTopic bounds each topic, follow-ups included.
const maxQuestionsPerTopic = 3

// answerExcerptChars is how much of an answer feeds the rolling topic
// context handed to the question generator.
const answerExcerptChars = 100

// RecordHandler receives every accepted answer, in chronological order,
// exactly once each. Implementations must not block the flow on slow
// sinks.
type RecordHandler interface {
	Record(ctx context.Context, rec *domain.ResponseRecord)
}

// Config assembles an Orchestrator.
type Config struct {
	Plan          domain.InterviewPlan
	Caps          ports.Capabilities
	Bank          *questionbank.Bank
	Prompt        *prompt.Builder
	JDSummary     string
	ResumeSummary string
	CandidateName string

	// Records and Events are optional; nil disables the hand-off.
	Records RecordHandler
	Events  ports.EventPublisher

	// State overrides the freshly constructed session state; tests use
	// this to inject a fake clock.
	State *session.State

	Exec   *retry.Executor
	Logger *slog.Logger

	// Sleep is the pause primitive between re-prompts. Injectable for
	// tests; nil uses a timer.
	Sleep retry.SleepFunc
}

// Orchestrator is the interview state machine. One instance runs exactly
// one session; phases advance forward only.
type Orchestrator struct {
	plan      domain.InterviewPlan
	st        *session.State
	speaker   *Speaker
	capturer  *Capturer
	generator *Generator
	bank      *questionbank.Bank
	watcher   *Watcher
	records   RecordHandler
	events    ports.EventPublisher
	sleep     retry.SleepFunc
	logger    *slog.Logger
	phase     domain.Phase
}

// Outcome summarizes a finished session.
type Outcome struct {
	SessionID      string
	Completed      bool
	Err            error
	Responses      int
	TopicsCovered  []string
	ExtensionsUsed int
	ElapsedSeconds float64
}

// New validates the capability set and assembles the orchestrator. A
// missing capability is fatal: the session must not start.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Caps.Speech == nil {
		return nil, domain.ErrFatal("speech output capability is required")
	}
	if cfg.Caps.Listener == nil {
		return nil, domain.ErrFatal("speech input capability is required")
	}
	if cfg.Caps.Generator == nil {
		return nil, domain.ErrFatal("question generator capability is required")
	}
	if cfg.Caps.Voice == nil {
		return nil, domain.ErrFatal("voice activity capability is required")
	}
	if cfg.Bank == nil {
		cfg.Bank = questionbank.New()
	}
	if cfg.Prompt == nil {
		builder, err := prompt.NewBuilder("", 0)
		if err != nil {
			return nil, fmt.Errorf("build default prompt builder: %w", err)
		}
		cfg.Prompt = builder
	}
	if cfg.Exec == nil {
		cfg.Exec = retry.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}

	st := cfg.State
	if st == nil {
		st = session.New(cfg.Plan, session.WithCandidateName(cfg.CandidateName))
	}

	speaker := NewSpeaker(cfg.Caps.Speech, cfg.Exec,
		WithSpeakerLogger(cfg.Logger), WithSpeakerSleep(cfg.Sleep))

	return &Orchestrator{
		plan:      cfg.Plan,
		st:        st,
		speaker:   speaker,
		capturer:  NewCapturer(cfg.Caps.Listener, cfg.Exec, cfg.Logger),
		generator: NewGenerator(cfg.Caps.Generator, cfg.Bank, cfg.Prompt, cfg.Exec, cfg.JDSummary, cfg.ResumeSummary, cfg.Logger),
		bank:      cfg.Bank,
		watcher:   NewWatcher(cfg.Caps.Voice, speaker, cfg.Logger),
		records:   cfg.Records,
		events:    cfg.Events,
		sleep:     cfg.Sleep,
		logger:    cfg.Logger.With(slog.String("session_id", st.ID())),
		phase:     domain.PhaseGreeting,
	}, nil
}

// State exposes the session state for progress snapshots.
func (o *Orchestrator) State() *session.State {
	return o.st
}

// Phase reports the current flow phase.
func (o *Orchestrator) Phase() domain.Phase {
	return o.phase
}

// Run executes the whole interview. Any error that escapes the per-call
// wrappers is caught here once: the apology line is spoken best-effort and
// the session proceeds to cleanup. The outcome is always returned.
func (o *Orchestrator) Run(ctx context.Context) *Outcome {
	o.publish(ctx, domain.SessionEventStarted, map[string]string{
		"role_title":      o.plan.RoleTitle,
		"planned_minutes": fmt.Sprintf("%d", o.plan.PlannedMinutes),
	})

	watchCtx, stopWatcher := context.WithCancel(ctx)
	defer stopWatcher()
	go o.watcher.Run(watchCtx)

	err := o.runPhases(ctx)
	stopWatcher()

	outcome := &Outcome{
		SessionID:      o.st.ID(),
		Responses:      len(o.st.Responses()),
		TopicsCovered:  o.st.TopicsCovered(),
		ExtensionsUsed: o.st.ExtensionsUsed(),
		ElapsedSeconds: o.st.ElapsedSeconds(),
	}
	if err != nil {
		outcome.Err = err
		o.logger.Error("interview flow failed", slog.String("error", err.Error()))
		o.publish(ctx, domain.SessionEventFailed, map[string]string{"error": err.Error()})
		if ctx.Err() == nil {
			// Best-effort; a failing apology must not mask the cause.
			_ = o.speaker.Say(ctx, lineApology)
		}
		return outcome
	}

	outcome.Completed = true
	o.publish(ctx, domain.SessionEventCompleted, map[string]string{
		"responses":       fmt.Sprintf("%d", outcome.Responses),
		"topics_covered":  fmt.Sprintf("%d", len(outcome.TopicsCovered)),
		"extensions_used": fmt.Sprintf("%d", outcome.ExtensionsUsed),
	})
	return outcome
}

func (o *Orchestrator) runPhases(ctx context.Context) error {
	if err := o.runGreeting(ctx); err != nil {
		return err
	}
	o.setPhase(ctx, domain.PhaseIntroduction)
	if err := o.runIntroduction(ctx); err != nil {
		return err
	}
	o.setPhase(ctx, domain.PhaseTopicLoop)
	if err := o.runTopicLoop(ctx); err != nil {
		return err
	}
	o.setPhase(ctx, domain.PhaseClosing)
	if err := o.runClosing(ctx); err != nil {
		return err
	}
	o.setPhase(ctx, domain.PhaseDone)
	return nil
}

func (o *Orchestrator) runGreeting(ctx context.Context) error {
	greeting := greetingLine(o.st.CandidateName(), o.plan.RoleTitle)
	if err := o.speaker.Say(ctx, greeting); err != nil {
		return err
	}

	policy := retry.Policy{
		Name:        "greeting capture",
		MaxAttempts: 3,
		PerAttempt:  45 * time.Second,
		OnRetry: func(ctx context.Context, attempt int, err error) {
			o.logger.Info("no response to greeting, re-prompting", slog.Int("attempt", attempt+1))
			_ = o.speaker.Say(ctx, lineGreetingReprompt)
			_ = o.sleep(ctx, 2*time.Second)
		},
	}

	answer, err := o.capturer.Capture(ctx, policy)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.logger.Info("no response to greeting after all attempts, proceeding")
		return o.speaker.Say(ctx, lineGreetingGiveUp)
	}

	o.recordAnswer(ctx, greetingQuestion, answer)
	o.logger.Info("greeting answered",
		slog.String("quality", string(quality.Classify(answer))))
	return o.speaker.Say(ctx, lineGreetingAck)
}

func (o *Orchestrator) runIntroduction(ctx context.Context) error {
	questions := []string{lineIntroSelf, introRoleQuestion(o.plan.RoleTitle)}
	for _, question := range questions {
		if err := o.speaker.Say(ctx, question); err != nil {
			return err
		}

		rephrase := lineIntroRoleRephrase
		if strings.Contains(strings.ToLower(question), "about yourself") {
			rephrase = lineIntroSelfRephrase
		}
		policy := retry.Policy{
			Name:        "intro capture",
			MaxAttempts: 2,
			PerAttempt:  45 * time.Second,
			OnRetry: func(ctx context.Context, attempt int, err error) {
				o.logger.Info("no response to intro question, rephrasing",
					slog.String("question", question))
				_ = o.speaker.Say(ctx, rephrase)
				_ = o.sleep(ctx, time.Second)
			},
		}

		answer, err := o.capturer.Capture(ctx, policy)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Warn("intro question unanswered, moving on",
				slog.String("question", question))
			if err := o.speaker.Say(ctx, lineIntroGiveUp); err != nil {
				return err
			}
			continue
		}
		o.recordAnswer(ctx, question, answer)
	}
	return nil
}

func (o *Orchestrator) runTopicLoop(ctx context.Context) error {
	for _, topic := range o.plan.Topics() {
		remaining := o.st.RemainingWithExtension()
		if remaining <= 2 {
			o.logger.Info("insufficient time remaining, ending topic loop",
				slog.Float64("remaining_minutes", remaining))
			break
		}

		progress := o.st.Progress()
		o.logger.Info("starting topic",
			slog.String("topic", topic),
			slog.Float64("remaining_minutes", remaining),
			slog.Float64("progress_percent", progress.ProgressPercent))

		if err := o.speaker.Say(ctx, topicTransition(topic, o.plan.IsProject(topic))); err != nil {
			return err
		}

		if err := o.runTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runTopic(ctx context.Context, topic string) error {
	topicContext := fmt.Sprintf("We're now discussing %s", topic)
	questions := 0

	for questions < maxQuestionsPerTopic {
		if o.st.RemainingBase() <= 1 {
			if !o.tryExtend(ctx, o.st.LastQuality()) {
				o.logger.Info("base time exhausted, no extension possible",
					slog.String("topic", topic))
				return nil
			}
			if err := o.speaker.Say(ctx, lineExtensionAck); err != nil {
				return err
			}
		}

		question := o.generator.Next(ctx, o.st, topic, topicContext)
		o.logger.Info("asking question",
			slog.String("topic", topic),
			slog.Int("number", questions+1),
			slog.String("question", question))
		if err := o.speaker.Say(ctx, question); err != nil {
			return err
		}

		answer, err := o.capturer.Capture(ctx, o.technicalPolicy())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := o.runSimplifiedFallback(ctx, topic, question); err != nil {
				return err
			}
			questions++
			continue
		}

		o.recordAnswer(ctx, question, answer)
		questions++
		o.st.MarkTopicCovered(topic)

		label := quality.Classify(answer)
		o.st.SetLastQuality(label)
		topicContext += fmt.Sprintf(" The candidate mentioned: %s...", excerpt(answer, answerExcerptChars))

		switch label {
		case domain.QualityBrief:
			if questions < maxQuestionsPerTopic {
				asked, err := o.runBriefFollowUp(ctx, topic, answer, &topicContext)
				if err != nil {
					return err
				}
				if asked {
					questions++
				}
			}
		case domain.QualityDetailed, domain.QualityExcellent:
			if o.st.RemainingBase() <= 3 && o.tryExtend(ctx, label) {
				o.logger.Info("extending interview for answer quality",
					slog.String("quality", string(label)))
				if err := o.speaker.Say(ctx, lineEncouragement); err != nil {
					return err
				}
			}
		}

		if questions < maxQuestionsPerTopic {
			if mention := o.scanMentions(answer, topic); mention != "" {
				topicContext += fmt.Sprintf(" Candidate mentioned %s, exploring connection to %s", mention, topic)
			}
		}
	}
	return nil
}

func (o *Orchestrator) technicalPolicy() retry.Policy {
	return retry.Policy{
		Name:        "technical capture",
		MaxAttempts: 2,
		PerAttempt:  60 * time.Second,
		OnRetry: func(ctx context.Context, attempt int, err error) {
			o.logger.Info("no response to technical question, prompting",
				slog.Int("attempt", attempt+1))
			_ = o.speaker.Say(ctx, lineTechReprompt)
			_ = o.sleep(ctx, 2*time.Second)
		},
	}
}

func followUpPolicy() retry.Policy {
	return retry.Policy{
		Name:        "follow-up capture",
		MaxAttempts: 1,
		PerAttempt:  30 * time.Second,
	}
}

// runBriefFollowUp asks one generated follow-up after a brief answer. It
// reports whether the follow-up was answered and consumed a question slot.
func (o *Orchestrator) runBriefFollowUp(ctx context.Context, topic, answer string, topicContext *string) (bool, error) {
	followCtx := fmt.Sprintf("The candidate gave a brief or uncertain response: '%s'. Ask a follow-up question to encourage more detail or try a different angle.", answer)
	followUp := o.generator.Next(ctx, o.st, topic, followCtx)
	o.logger.Info("follow-up for brief response", slog.String("question", followUp))
	if err := o.speaker.Say(ctx, followUp); err != nil {
		return false, err
	}

	followAnswer, err := o.capturer.Capture(ctx, followUpPolicy())
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}

	o.recordAnswer(ctx, followUp, followAnswer)
	*topicContext += fmt.Sprintf(" Follow-up response: %s...", excerpt(followAnswer, answerExcerptChars))
	return true, nil
}

// runSimplifiedFallback re-engages after a fully unanswered technical
// question with one bank question and a single short capture.
func (o *Orchestrator) runSimplifiedFallback(ctx context.Context, topic, question string) error {
	o.logger.Warn("no response to technical question after all attempts",
		slog.String("question", question))
	if err := o.speaker.Say(ctx, lineReengage); err != nil {
		return err
	}

	simplified := o.bank.Simplified(topic)
	o.logger.Info("trying simplified question", slog.String("question", simplified))
	if err := o.speaker.Say(ctx, simplified); err != nil {
		return err
	}

	answer, err := o.capturer.Capture(ctx, followUpPolicy())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.logger.Warn("no response to simplified question", slog.String("topic", topic))
		return nil
	}

	o.recordAnswer(ctx, simplified, answer)
	o.st.MarkTopicCovered(topic)
	return nil
}

func (o *Orchestrator) runClosing(ctx context.Context) error {
	return o.speaker.Say(ctx, closingLine(o.st.CandidateName()))
}

// tryExtend consults the extension policy and grants on approval.
func (o *Orchestrator) tryExtend(ctx context.Context, label domain.QualityLabel) bool {
	if !shouldExtend(o.st, label) {
		return false
	}
	if !o.st.GrantExtension() {
		return false
	}
	o.logger.Info("interview extended",
		slog.Int("extension", o.st.ExtensionsUsed()),
		slog.String("trigger_quality", string(label)))
	o.publish(ctx, domain.SessionEventExtensionGranted, map[string]string{
		"extension":       fmt.Sprintf("%d", o.st.ExtensionsUsed()),
		"trigger_quality": string(label),
	})
	return true
}

// scanMentions returns the first other topic named in the answer. The
// result only enriches the generator context; it never reschedules.
func (o *Orchestrator) scanMentions(answer, topic string) string {
	lower := strings.ToLower(answer)
	for _, other := range o.plan.Topics() {
		if other == topic {
			continue
		}
		if strings.Contains(lower, strings.ToLower(other)) {
			return other
		}
	}
	return ""
}

func (o *Orchestrator) recordAnswer(ctx context.Context, question, answer string) {
	rec := o.st.AppendResponse(question, answer)
	o.logger.Info("answer recorded",
		slog.String("question", question),
		slog.Int("answer_chars", len(answer)))
	if o.records != nil {
		o.records.Record(ctx, rec)
	}
	o.publish(ctx, domain.SessionEventAnswerRecorded, map[string]string{
		"question": question,
	})
}

func (o *Orchestrator) setPhase(ctx context.Context, phase domain.Phase) {
	o.logger.Info("phase change",
		slog.String("from", string(o.phase)),
		slog.String("to", string(phase)))
	o.phase = phase
	o.publish(ctx, domain.SessionEventPhaseChanged, map[string]string{
		"phase": string(phase),
	})
}

// publish hands an event to the publisher best-effort; the flow never
// fails on event delivery.
func (o *Orchestrator) publish(ctx context.Context, typ domain.SessionEventType, data map[string]string) {
	if o.events == nil {
		return
	}
	ev := &domain.SessionEvent{
		Type:      typ,
		SessionID: o.st.ID(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	if err := o.events.Publish(ctx, ev); err != nil {
		o.logger.Warn("event publish failed",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()))
	}
}

// excerpt truncates s to at most n runes.
func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
