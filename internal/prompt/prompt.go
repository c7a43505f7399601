// Package prompt assembles question-generation prompts with a token budget.
package prompt

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = "You are a professional AI interview bot conducting technical interviews."

// QA is a prior question/answer pair carried as conversational context.
type QA struct {
	Question string
	Answer   string
}

// Input carries everything the builder folds into a single prompt.
type Input struct {
	JDSummary        string
	ResumeSummary    string
	CandidateName    string
	PlannedMinutes   int
	ProgressPercent  float64
	RemainingMinutes float64
	Recent           []QA
	Topic            string
	Context          string
	TopicsCovered    []string
}

// Builder renders prompts and enforces a token budget by dropping the
// oldest recent Q/A pairs first.
type Builder struct {
	codec        tokenizer.Codec
	systemPrompt string
	budget       int
}

// NewBuilder returns a Builder. budget <= 0 disables budget enforcement.
func NewBuilder(systemPrompt string, budget int) (*Builder, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("get tokenizer codec: %w", err)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Builder{codec: codec, systemPrompt: systemPrompt, budget: budget}, nil
}

// Build renders the prompt for in. When the rendered prompt exceeds the
// token budget, recent Q/A pairs are dropped oldest-first until it fits
// or none remain.
func (b *Builder) Build(in Input) string {
	recent := in.Recent
	for {
		text := b.render(in, recent)
		if b.budget <= 0 || len(recent) == 0 {
			return text
		}
		n, err := b.countTokens(text)
		if err != nil || n <= b.budget {
			return text
		}
		recent = recent[1:]
	}
}

// CountTokens reports the token count of text under the builder's codec.
func (b *Builder) CountTokens(text string) (int, error) {
	return b.countTokens(text)
}

func (b *Builder) countTokens(text string) (int, error) {
	ids, _, err := b.codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("encode prompt: %w", err)
	}
	return len(ids), nil
}

func (b *Builder) render(in Input, recent []QA) string {
	var sb strings.Builder

	recentContext := ""
	if len(recent) > 0 {
		var rc strings.Builder
		rc.WriteString("Recent conversation:\n")
		for _, qa := range recent {
			fmt.Fprintf(&rc, "Q: %s\nA: %s\n", qa.Question, qa.Answer)
		}
		recentContext = rc.String()
	}

	timeContext := fmt.Sprintf("Interview progress: %g%% complete, %g minutes remaining.",
		in.ProgressPercent, in.RemainingMinutes)

	fmt.Fprintf(&sb, "%s\n\n", b.systemPrompt)
	fmt.Fprintf(&sb, "Current JD: %s\n", in.JDSummary)
	fmt.Fprintf(&sb, "Resume: %s\n", in.ResumeSummary)
	fmt.Fprintf(&sb, "Candidate name: %s\n", in.CandidateName)
	fmt.Fprintf(&sb, "Interview duration: %d minutes\n", in.PlannedMinutes)
	fmt.Fprintf(&sb, "%s\n\n", timeContext)
	fmt.Fprintf(&sb, "%s\n", recentContext)
	fmt.Fprintf(&sb, "Current topic focus: %s\n", in.Topic)
	fmt.Fprintf(&sb, "Additional context: %s\n", in.Context)
	fmt.Fprintf(&sb, "Topics already covered: %s\n\n", strings.Join(in.TopicsCovered, ", "))
	fmt.Fprintf(&sb, "Generate the next interview question focusing on %s. ", in.Topic)
	sb.WriteString("Make it progressive, adaptive, and contextually relevant to previous responses. ")
	sb.WriteString("Consider the remaining time and adjust depth accordingly. ")
	sb.WriteString("Keep it conversational and natural. Only return the question, no additional text.")
	return sb.String()
}
