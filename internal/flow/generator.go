package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
	"github.com/tjfontaine/interview-conductor/internal/prompt"
	"github.com/tjfontaine/interview-conductor/internal/questionbank"
	"github.com/tjfontaine/interview-conductor/internal/retry"
	"github.com/tjfontaine/interview-conductor/internal/session"
)

// minQuestionRunes rejects degenerate generator output; anything this
// short is treated as a failed attempt.
const minQuestionRunes = 11

// Generator produces topic questions, falling back to the question bank
// when the generation policy is exhausted. It never returns an error: a
// question always comes back.
type Generator struct {
	gen           ports.QuestionGenerator
	bank          *questionbank.Bank
	builder       *prompt.Builder
	exec          *retry.Executor
	jdSummary     string
	resumeSummary string
	logger        *slog.Logger
}

// NewGenerator wraps a question-generation capability.
func NewGenerator(gen ports.QuestionGenerator, bank *questionbank.Bank, builder *prompt.Builder, exec *retry.Executor, jdSummary, resumeSummary string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		gen:           gen,
		bank:          bank,
		builder:       builder,
		exec:          exec,
		jdSummary:     jdSummary,
		resumeSummary: resumeSummary,
		logger:        logger,
	}
}

func questionPolicy() retry.Policy {
	return retry.Policy{
		Name:        "question generation",
		MaxAttempts: 4,
		PerAttempt:  30 * time.Second,
		Backoff:     time.Second,
	}
}

// Next generates the next question for topic, seeding the prompt with the
// session's progress, the last two answers, and the accumulated topic
// context.
func (g *Generator) Next(ctx context.Context, st *session.State, topic, topicContext string) string {
	progress := st.Progress()
	recent := st.RecentResponses(2)
	pairs := make([]prompt.QA, 0, len(recent))
	for _, r := range recent {
		pairs = append(pairs, prompt.QA{Question: r.Question, Answer: r.Response})
	}

	in := prompt.Input{
		JDSummary:        g.jdSummary,
		ResumeSummary:    g.resumeSummary,
		CandidateName:    st.CandidateName(),
		PlannedMinutes:   progress.PlannedMinutes,
		ProgressPercent:  progress.ProgressPercent,
		RemainingMinutes: progress.RemainingMinutes,
		Recent:           pairs,
		Topic:            topic,
		Context:          topicContext,
		TopicsCovered:    st.TopicsCovered(),
	}

	var question string
	err := g.exec.Do(ctx, questionPolicy(), func(ctx context.Context) error {
		text, err := g.gen.GenerateQuestion(ctx, g.builder.Build(in))
		if err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if utf8.RuneCountInString(text) < minQuestionRunes {
			return domain.ErrTransient("generated question is empty or too short")
		}
		question = text
		return nil
	})
	if err != nil {
		fallback := g.bank.Question(topic)
		g.logger.Warn("question generation exhausted, using fallback bank",
			slog.String("topic", topic),
			slog.String("fallback", fallback),
			slog.String("error", err.Error()))
		return fallback
	}
	return question
}
