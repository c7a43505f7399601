package gemini

import (
	"context"
	"strings"
	"testing"

	"github.com/tjfontaine/interview-conductor/internal/testutil"
)

func TestGenerateQuestionReplayed(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "generate_question")
	defer cleanup()

	client, err := NewClient("test-key",
		WithHTTPClient(testutil.VCRHTTPClient(r)),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	question, err := client.GenerateQuestion(context.Background(), "Ask one technical question about goroutines.")
	if err != nil {
		t.Fatalf("GenerateQuestion() error = %v", err)
	}
	if !strings.Contains(question, "Go scheduler") {
		t.Errorf("GenerateQuestion() = %q, want recorded scheduler question", question)
	}
}
