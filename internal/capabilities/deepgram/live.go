// Package deepgram implements the speech-input and voice-activity
// capabilities over the Deepgram live transcription WebSocket protocol.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
)

const (
	defaultBaseURL    = "wss://api.deepgram.com"
	defaultModel      = "nova-3"
	defaultLanguage   = "en-US"
	defaultSampleRate = 16000

	// utteranceEndMS is the silence gap that closes an utterance.
	utteranceEndMS = 1000
)

// Option configures a LiveTranscriber.
type Option func(*LiveTranscriber)

// WithBaseURL sets a custom WebSocket base URL (ws:// or wss://).
func WithBaseURL(baseURL string) Option {
	return func(l *LiveTranscriber) {
		l.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithModel sets the transcription model.
func WithModel(model string) Option {
	return func(l *LiveTranscriber) {
		l.model = model
	}
}

// WithLanguage sets the transcription language.
func WithLanguage(language string) Option {
	return func(l *LiveTranscriber) {
		l.language = language
	}
}

// WithSampleRate sets the PCM sample rate of the audio source.
func WithSampleRate(rate int) Option {
	return func(l *LiveTranscriber) {
		l.sampleRate = rate
	}
}

// WithSmartFormat toggles Deepgram smart formatting.
func WithSmartFormat(on bool) Option {
	return func(l *LiveTranscriber) {
		l.smartFormat = on
	}
}

// WithAudioSource sets the PCM audio source streamed on each capture.
// Without a source the connection is read-only, which suits tests and
// server-push setups.
func WithAudioSource(source io.Reader) Option {
	return func(l *LiveTranscriber) {
		l.source = source
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *LiveTranscriber) {
		l.logger = logger
	}
}

// LiveTranscriber is a SpeechInput and VoiceActivity implementation over
// one Deepgram live connection per capture. Voice events from every
// capture flow into a single Events channel so the watcher outlives
// individual captures.
type LiveTranscriber struct {
	apiKey      string
	baseURL     string
	model       string
	language    string
	sampleRate  int
	smartFormat bool
	source      io.Reader
	logger      *slog.Logger

	events    chan ports.VoiceEvent
	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// New creates a LiveTranscriber. A missing API key is a fatal construction
// failure.
func New(apiKey string, opts ...Option) (*LiveTranscriber, error) {
	if apiKey == "" {
		return nil, domain.ErrFatal("deepgram api key is required")
	}
	l := &LiveTranscriber{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		model:       defaultModel,
		language:    defaultLanguage,
		sampleRate:  defaultSampleRate,
		smartFormat: true,
		logger:      slog.Default(),
		events:      make(chan ports.VoiceEvent, 16),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Events returns the voice-activity channel shared by all captures.
func (l *LiveTranscriber) Events() <-chan ports.VoiceEvent {
	return l.events
}

// Close shuts the voice-event channel. In-flight captures drain on their
// own context.
func (l *LiveTranscriber) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.events)
	})
	return nil
}

func (l *LiveTranscriber) listenURL() (string, error) {
	u, err := url.Parse(l.baseURL + "/v1/listen")
	if err != nil {
		return "", fmt.Errorf("parse listen URL: %w", err)
	}
	q := u.Query()
	q.Set("model", l.model)
	q.Set("language", l.language)
	q.Set("encoding", "linear16")
	q.Set("channels", "1")
	q.Set("sample_rate", strconv.Itoa(l.sampleRate))
	q.Set("smart_format", strconv.FormatBool(l.smartFormat))
	q.Set("interim_results", "true")
	q.Set("vad_events", "true")
	q.Set("utterance_end_ms", strconv.Itoa(utteranceEndMS))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CaptureUtterance dials a fresh live connection and streams transcript
// segments until ctx is done or the server closes. The channel is closed on
// exit; stream failures arrive as a final Err segment.
func (l *LiveTranscriber) CaptureUtterance(ctx context.Context) (<-chan ports.TranscriptSegment, error) {
	endpoint, err := l.listenURL()
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+l.apiKey)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return nil, fmt.Errorf("dial audio stream (status %d): %s", resp.StatusCode, string(body))
			}
		}
		return nil, fmt.Errorf("dial audio stream: %w", err)
	}

	out := make(chan ports.TranscriptSegment, 16)
	if l.source != nil {
		go l.writeLoop(ctx, conn)
	}
	go l.readLoop(ctx, conn, out)
	return out, nil
}

type liveMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (l *LiveTranscriber) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- ports.TranscriptSegment) {
	defer close(out)
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	speechStarted := false
	sawFinal := false

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			out <- ports.TranscriptSegment{Err: fmt.Errorf("audio stream read: %w", err)}
			return
		}

		var msg liveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			l.logger.Debug("undecodable live message skipped", slog.String("error", err.Error()))
			continue
		}

		switch msg.Type {
		case "Results":
			if len(msg.Channel.Alternatives) == 0 {
				continue
			}
			text := msg.Channel.Alternatives[0].Transcript
			if strings.TrimSpace(text) == "" {
				continue
			}
			if msg.IsFinal {
				sawFinal = true
			}
			select {
			case out <- ports.TranscriptSegment{Text: text, Final: msg.IsFinal}:
			case <-ctx.Done():
				return
			}
		case "SpeechStarted":
			speechStarted = true
			sawFinal = false
			l.emit(ports.VoiceEvent{Type: ports.VoiceSpeechStarted, Timestamp: time.Now().UTC()})
		case "UtteranceEnd":
			l.emit(ports.VoiceEvent{Type: ports.VoiceUtteranceEnd, Timestamp: time.Now().UTC()})
			// Speech began but no transcript was finalized: the voice
			// layer fired on something that was not an answer.
			if speechStarted && !sawFinal {
				l.emit(ports.VoiceEvent{Type: ports.VoiceFalseInterruption, Timestamp: time.Now().UTC()})
			}
			speechStarted = false
		case "Metadata":
			// Connection bookkeeping only.
		}
	}
}

// emit delivers a voice event without ever blocking the read loop.
func (l *LiveTranscriber) emit(ev ports.VoiceEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.events <- ev:
	default:
		l.logger.Debug("voice event dropped", slog.String("type", string(ev.Type)))
	}
}

func (l *LiveTranscriber) writeLoop(ctx context.Context, conn *websocket.Conn) {
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := l.source.Read(buf)
		if n > 0 {
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return
			}
		}
		if err == io.EOF {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
			return
		}
		if err != nil {
			return
		}
	}
}
