// Package console provides stdio capabilities for local runs: spoken lines
// go to a writer, answers are read line-by-line from a reader, and question
// generation defers to the flow's fallback bank.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
)

var ssmlUnescaper = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">")

// Speech prints interviewer lines. It implements ports.SpeechOutput with
// an immediate completion signal so the flow never waits on a terminal.
type Speech struct {
	mu  sync.Mutex
	out io.Writer
}

// NewSpeech creates a console speech output writing to out.
func NewSpeech(out io.Writer) *Speech {
	return &Speech{out: out}
}

func (s *Speech) Speak(ctx context.Context, text string, ssml bool) (*ports.SpeakResult, error) {
	if ssml {
		text = strings.TrimSuffix(strings.TrimPrefix(text, "<speak>"), "</speak>")
		text = ssmlUnescaper.Replace(text)
	}
	s.mu.Lock()
	_, err := fmt.Fprintf(s.out, "Interviewer: %s\n", text)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write line: %w", err)
	}
	done := make(chan struct{})
	close(done)
	return &ports.SpeakResult{Completed: done}, nil
}

func (s *Speech) Close() error { return nil }

// Listener reads candidate answers one line per capture. A single reader
// goroutine owns the input so captures can respect their deadline even
// though reads on the underlying reader block.
type Listener struct {
	lines chan string
	done  chan struct{}
	once  sync.Once
}

// NewListener starts reading lines from in.
func NewListener(in io.Reader) *Listener {
	l := &Listener{
		lines: make(chan string),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(l.lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case l.lines <- scanner.Text():
			case <-l.done:
				return
			}
		}
	}()
	return l
}

func (l *Listener) CaptureUtterance(ctx context.Context) (<-chan ports.TranscriptSegment, error) {
	out := make(chan ports.TranscriptSegment, 1)
	go func() {
		defer close(out)
		select {
		case <-ctx.Done():
		case line, ok := <-l.lines:
			if !ok {
				return
			}
			out <- ports.TranscriptSegment{Text: line, Final: true}
		}
	}()
	return out, nil
}

func (l *Listener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

// StaticGenerator always declines so the flow falls through to the
// question bank; console runs have no language model behind them.
type StaticGenerator struct{}

func (StaticGenerator) GenerateQuestion(ctx context.Context, prompt string) (string, error) {
	return "", domain.ErrTransient("console mode has no question generator")
}

// Voice is a VoiceActivity with no events; its channel is closed.
type Voice struct {
	ch chan ports.VoiceEvent
}

// NewVoice returns a silent voice-activity source.
func NewVoice() *Voice {
	v := &Voice{ch: make(chan ports.VoiceEvent)}
	close(v.ch)
	return v
}

func (v *Voice) Events() <-chan ports.VoiceEvent { return v.ch }

// Capabilities assembles the full console capability set.
func Capabilities(in io.Reader, out io.Writer) ports.Capabilities {
	return ports.Capabilities{
		Speech:    NewSpeech(out),
		Listener:  NewListener(in),
		Generator: StaticGenerator{},
		Voice:     NewVoice(),
	}
}
