package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tjfontaine/interview-conductor/internal/core/ports"
)

var upgrader = websocket.Upgrader{}

// newLiveServer runs a fake Deepgram endpoint that pushes the scripted
// messages and then closes normally.
func newLiveServer(t *testing.T, messages []string, onRequest func(*http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if onRequest != nil {
			onRequest(r)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func collect(t *testing.T, ch <-chan ports.TranscriptSegment) []ports.TranscriptSegment {
	t.Helper()
	var segs []ports.TranscriptSegment
	timeout := time.After(5 * time.Second)
	for {
		select {
		case seg, ok := <-ch:
			if !ok {
				return segs
			}
			segs = append(segs, seg)
		case <-timeout:
			t.Fatal("timed out draining transcript stream")
		}
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") error = nil, want fatal error")
	}
}

func TestCaptureUtteranceStreamsTranscripts(t *testing.T) {
	messages := []string{
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"I built"}]}}`,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":""}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"I built a pipeline"}]}}`,
	}
	var gotAuth, gotQuery string
	srv := newLiveServer(t, messages, func(r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
	})
	defer srv.Close()

	l, err := New("dg-key", WithBaseURL(wsURL(srv)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Close()

	ch, err := l.CaptureUtterance(context.Background())
	if err != nil {
		t.Fatalf("CaptureUtterance() error = %v", err)
	}
	segs := collect(t, ch)

	if gotAuth != "Token dg-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	for _, want := range []string{"model=nova-3", "encoding=linear16", "interim_results=true", "vad_events=true"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}

	// The empty interim is filtered out.
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2 (%+v)", len(segs), segs)
	}
	if segs[0].Final || segs[0].Text != "I built" {
		t.Errorf("segment 0 = %+v", segs[0])
	}
	if !segs[1].Final || segs[1].Text != "I built a pipeline" {
		t.Errorf("segment 1 = %+v", segs[1])
	}
}

func TestCaptureUtteranceEmitsVoiceEvents(t *testing.T) {
	messages := []string{
		`{"type":"SpeechStarted"}`,
		`{"type":"UtteranceEnd"}`,
	}
	srv := newLiveServer(t, messages, nil)
	defer srv.Close()

	l, err := New("dg-key", WithBaseURL(wsURL(srv)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Close()

	ch, err := l.CaptureUtterance(context.Background())
	if err != nil {
		t.Fatalf("CaptureUtterance() error = %v", err)
	}
	collect(t, ch)

	var types []ports.VoiceEventType
	timeout := time.After(2 * time.Second)
	for len(types) < 3 {
		select {
		case ev := <-l.Events():
			types = append(types, ev.Type)
		case <-timeout:
			t.Fatalf("voice events = %v, want 3", types)
		}
	}

	want := []ports.VoiceEventType{
		ports.VoiceSpeechStarted,
		ports.VoiceUtteranceEnd,
		ports.VoiceFalseInterruption,
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, types[i], want[i])
		}
	}
}

func TestCaptureUtteranceNoFalseInterruptionAfterFinal(t *testing.T) {
	messages := []string{
		`{"type":"SpeechStarted"}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"a real answer"}]}}`,
		`{"type":"UtteranceEnd"}`,
	}
	srv := newLiveServer(t, messages, nil)
	defer srv.Close()

	l, err := New("dg-key", WithBaseURL(wsURL(srv)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Close()

	ch, err := l.CaptureUtterance(context.Background())
	if err != nil {
		t.Fatalf("CaptureUtterance() error = %v", err)
	}
	collect(t, ch)

	var types []ports.VoiceEventType
	timeout := time.After(time.Second)
drain:
	for {
		select {
		case ev := <-l.Events():
			types = append(types, ev.Type)
		case <-timeout:
			break drain
		}
	}
	for _, typ := range types {
		if typ == ports.VoiceFalseInterruption {
			t.Errorf("false interruption emitted after a final transcript; events = %v", types)
		}
	}
}

func TestCaptureUtteranceDialFailure(t *testing.T) {
	l, err := New("dg-key", WithBaseURL("ws://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Close()

	_, err = l.CaptureUtterance(context.Background())
	if err == nil {
		t.Fatal("CaptureUtterance() error = nil, want dial failure")
	}
	if !strings.Contains(err.Error(), "audio") {
		t.Errorf("dial error %q should mention audio for the retry gate", err)
	}
}
