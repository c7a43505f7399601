// Package googletts implements the speech-output capability over the
// Google Cloud text:synthesize REST API.
package googletts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
)

const (
	defaultBaseURL = "https://texttospeech.googleapis.com"
	defaultVoice   = "en-US-Chirp3-HD-Despina"
	defaultLang    = "en-US"

	// LINEAR16 output: 16-bit samples at this rate.
	sampleRateHertz = 24000
	bytesPerSecond  = sampleRateHertz * 2
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithVoice sets the synthesis voice name and language.
func WithVoice(name, language string) ClientOption {
	return func(c *Client) {
		if name != "" {
			c.voice = name
		}
		if language != "" {
			c.language = language
		}
	}
}

// WithAudioWriter directs decoded PCM audio to w. The default discards it;
// deployments wire the media-room publisher here.
func WithAudioWriter(w io.Writer) ClientOption {
	return func(c *Client) {
		c.audio = w
	}
}

// Client synthesizes speech over the text:synthesize endpoint. It
// implements ports.SpeechOutput. There is no real completion signal from
// the API, so Speak reports an estimated duration derived from the decoded
// audio length and the caller waits it out.
type Client struct {
	apiKey     string
	baseURL    string
	voice      string
	language   string
	httpClient *http.Client
	audio      io.Writer
}

// NewClient creates a new synthesis client. A missing API key is a fatal
// construction failure.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, domain.ErrFatal("text-to-speech api key is required")
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		voice:      defaultVoice,
		language:   defaultLang,
		httpClient: http.DefaultClient,
		audio:      io.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type synthesizeInput struct {
	Text string `json:"text,omitempty"`
	SSML string `json:"ssml,omitempty"`
}

type synthesizeRequest struct {
	Input synthesizeInput `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding   string `json:"audioEncoding"`
		SampleRateHertz int    `json:"sampleRateHertz"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Speak synthesizes text and hands the audio to the configured writer.
func (c *Client) Speak(ctx context.Context, text string, ssml bool) (*ports.SpeakResult, error) {
	var req synthesizeRequest
	if ssml {
		req.Input.SSML = text
	} else {
		req.Input.Text = text
	}
	req.Voice.LanguageCode = c.language
	req.Voice.Name = c.voice
	req.AudioConfig.AudioEncoding = "LINEAR16"
	req.AudioConfig.SampleRateHertz = sampleRateHertz

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/text:synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesis error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result synthesizeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	pcm, err := base64.StdEncoding.DecodeString(result.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	if _, err := c.audio.Write(pcm); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}

	est := time.Duration(float64(len(pcm)) / bytesPerSecond * float64(time.Second))
	return &ports.SpeakResult{EstimatedDuration: est}, nil
}

// Close is a no-op; the client holds no connection state.
func (c *Client) Close() error { return nil }
