package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestSpeechUnwrapsSSML(t *testing.T) {
	var out bytes.Buffer
	s := NewSpeech(&out)

	res, err := s.Speak(context.Background(), "<speak>Q&amp;A time</speak>", true)
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if got := out.String(); got != "Interviewer: Q&A time\n" {
		t.Errorf("output = %q", got)
	}
	select {
	case <-res.Completed:
	default:
		t.Error("Completed signal not immediate")
	}
}

func TestListenerCapturesLine(t *testing.T) {
	l := NewListener(strings.NewReader("I am doing well\n"))
	defer l.Close()

	ch, err := l.CaptureUtterance(context.Background())
	if err != nil {
		t.Fatalf("CaptureUtterance() error = %v", err)
	}
	select {
	case seg := <-ch:
		if !seg.Final || seg.Text != "I am doing well" {
			t.Errorf("segment = %+v", seg)
		}
	case <-time.After(time.Second):
		t.Fatal("no segment received")
	}
}

func TestListenerHonorsDeadline(t *testing.T) {
	l := NewListener(strings.NewReader(""))
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ch, err := l.CaptureUtterance(ctx)
	if err != nil {
		t.Fatalf("CaptureUtterance() error = %v", err)
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("unexpected segment from empty input")
		}
	case <-time.After(time.Second):
		t.Fatal("stream never closed")
	}
}

func TestStaticGeneratorAlwaysFails(t *testing.T) {
	if _, err := (StaticGenerator{}).GenerateQuestion(context.Background(), "anything"); err == nil {
		t.Fatal("GenerateQuestion() error = nil, want decline")
	}
}

func TestVoiceChannelClosed(t *testing.T) {
	v := NewVoice()
	select {
	case _, ok := <-v.Events():
		if ok {
			t.Error("unexpected voice event")
		}
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}
}
