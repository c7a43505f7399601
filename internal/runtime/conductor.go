// Package runtime provides the core Conductor struct and lifecycle
// management for the interview orchestration engine.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tjfontaine/interview-conductor/internal/adapters/sink/store"
	"github.com/tjfontaine/interview-conductor/internal/adapters/sink/webhook"
	"github.com/tjfontaine/interview-conductor/internal/api/rest"
	"github.com/tjfontaine/interview-conductor/internal/auth"
	"github.com/tjfontaine/interview-conductor/internal/capabilities/console"
	"github.com/tjfontaine/interview-conductor/internal/capabilities/deepgram"
	"github.com/tjfontaine/interview-conductor/internal/capabilities/gemini"
	"github.com/tjfontaine/interview-conductor/internal/capabilities/googletts"
	"github.com/tjfontaine/interview-conductor/internal/config"
	"github.com/tjfontaine/interview-conductor/internal/core/ports"
	"github.com/tjfontaine/interview-conductor/internal/flow"
	"github.com/tjfontaine/interview-conductor/internal/planner"
	"github.com/tjfontaine/interview-conductor/internal/prompt"
	"github.com/tjfontaine/interview-conductor/internal/questionbank"
	"github.com/tjfontaine/interview-conductor/internal/recorder"
	"github.com/tjfontaine/interview-conductor/internal/server"
	"github.com/tjfontaine/interview-conductor/internal/templates"
)

// Conductor is the main entry point for running the interview engine.
// It manages configuration, storage, the record API server, and interview
// session lifecycle. Conductor can be embedded in larger applications or
// run standalone.
type Conductor struct {
	// Dependencies (injected via options)
	config  ports.ConfigProvider
	storage ports.StorageProvider
	events  ports.EventPublisher
	logger  *slog.Logger

	// caps, when set, overrides the capability set assembled from config.
	caps *ports.Capabilities

	// Runtime state
	cfg       *config.Config
	server    *server.Server
	templates *templates.Registry
	authn     *auth.Authenticator

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

// New creates a Conductor with the given options. A config provider and a
// storage provider are required; the event publisher defaults to direct
// storage writes.
func New(opts ...Option) (*Conductor, error) {
	c := &Conductor{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if c.config == nil {
		return nil, fmt.Errorf("config provider is required (use WithFileConfig)")
	}
	if c.storage == nil {
		return nil, fmt.Errorf("storage provider is required (use WithSQLite, WithMemoryStorage, or WithJSONFileStorage)")
	}

	if c.events == nil {
		if err := WithDirectEvents()(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Start loads configuration, mounts the record API, and begins serving.
// It returns once the server is listening; use Shutdown to stop.
func (c *Conductor) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ctx, c.cancel = context.WithCancel(ctx)

	cfg, err := c.config.Load(c.ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	// Auth is enabled only when keys are configured at startup; reloads
	// rotate keys but cannot toggle the middleware on a built router.
	if len(cfg.API.APIKeys) > 0 {
		c.authn = auth.NewAuthenticator(cfg.API.APIKeys)
		c.logger.Info("api key authentication enabled", slog.Int("keys", len(cfg.API.APIKeys)))
	}
	c.templates = templates.New(cfg.Templates)

	srv := server.New(cfg.Server.Port, c.logger, c.authn)
	handler := rest.NewHandler(c.storage, c.templates,
		rest.WithRoom(cfg.Room),
		rest.WithLogger(c.logger),
	)
	handler.Register(srv.Router)
	c.server = srv

	go func() {
		if err := srv.Start(); err != nil {
			c.logger.Error("record api server failed", slog.String("error", err.Error()))
		}
	}()

	go c.watchConfig()

	c.logger.Info("conductor started", slog.Int("port", cfg.Server.Port))
	return nil
}

// RunInterview assembles the capability set, sinks, and plan from the
// loaded configuration and drives one interview session to completion.
// When interviewID is non-empty the session's transcript is mirrored onto
// that interview record.
func (c *Conductor) RunInterview(ctx context.Context, interviewID string) (*flow.Outcome, error) {
	cfg, err := c.currentConfig(ctx)
	if err != nil {
		return nil, err
	}

	plan := planner.Build(planner.Input{
		RoleTitle:       cfg.Interview.RoleTitle,
		Skills:          cfg.Interview.Skills,
		Projects:        cfg.Interview.Projects,
		ExperienceCount: cfg.Interview.ExperienceCount,
		OverrideMinutes: cfg.Interview.CustomDuration,
	})

	bank := questionbank.New()
	bank.Merge(cfg.QuestionBank)

	builder, err := prompt.NewBuilder(cfg.Prompt.SystemPrompt, cfg.Prompt.TokenBudget)
	if err != nil {
		return nil, fmt.Errorf("create prompt builder: %w", err)
	}

	caps, closeCaps, err := c.buildCapabilities(cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := closeCaps(); err != nil {
			c.logger.Warn("close capabilities", slog.String("error", err.Error()))
		}
	}()

	rec := recorder.New(c.buildSinks(cfg, interviewID), c.logger)
	defer rec.Close()

	orch, err := flow.New(flow.Config{
		Plan:          plan,
		Caps:          tracedCapabilities(caps),
		Bank:          bank,
		Prompt:        builder,
		JDSummary:     cfg.Interview.JDSummary,
		ResumeSummary: cfg.Interview.ResumeSummary,
		CandidateName: cfg.Interview.CandidateName,
		Records:       rec,
		Events:        c.events,
		Logger:        c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble session: %w", err)
	}

	return orch.Run(ctx), nil
}

// currentConfig returns the config loaded by Start, or loads it on demand
// so RunInterview works without the API server.
func (c *Conductor) currentConfig(ctx context.Context) (*config.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := c.config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

// buildCapabilities assembles the four capability ports for one session
// per the configured mode. The returned closer releases any live
// connections.
func (c *Conductor) buildCapabilities(cfg *config.Config) (ports.Capabilities, func() error, error) {
	if c.caps != nil {
		return *c.caps, func() error { return nil }, nil
	}

	switch cfg.Capabilities.Mode {
	case "", "console":
		caps := console.Capabilities(os.Stdin, os.Stdout)
		return caps, capsCloser(caps), nil

	case "live":
		geminiOpts := []gemini.ClientOption{}
		if cfg.Capabilities.Gemini.Model != "" {
			geminiOpts = append(geminiOpts, gemini.WithModel(cfg.Capabilities.Gemini.Model))
		}
		if cfg.Capabilities.Gemini.BaseURL != "" {
			geminiOpts = append(geminiOpts, gemini.WithBaseURL(cfg.Capabilities.Gemini.BaseURL))
		}
		generator, err := gemini.NewClient(cfg.Capabilities.Gemini.APIKey, geminiOpts...)
		if err != nil {
			return ports.Capabilities{}, nil, fmt.Errorf("create question generator: %w", err)
		}

		ttsOpts := []googletts.ClientOption{}
		if cfg.Capabilities.TTS.Voice != "" {
			ttsOpts = append(ttsOpts, googletts.WithVoice(cfg.Capabilities.TTS.Voice, cfg.Capabilities.TTS.Language))
		}
		if cfg.Capabilities.TTS.BaseURL != "" {
			ttsOpts = append(ttsOpts, googletts.WithBaseURL(cfg.Capabilities.TTS.BaseURL))
		}
		speech, err := googletts.NewClient(cfg.Capabilities.TTS.APIKey, ttsOpts...)
		if err != nil {
			return ports.Capabilities{}, nil, fmt.Errorf("create speech output: %w", err)
		}

		dgOpts := []deepgram.Option{deepgram.WithLogger(c.logger)}
		if cfg.Capabilities.Deepgram.Model != "" {
			dgOpts = append(dgOpts, deepgram.WithModel(cfg.Capabilities.Deepgram.Model))
		}
		if cfg.Capabilities.Deepgram.Language != "" {
			dgOpts = append(dgOpts, deepgram.WithLanguage(cfg.Capabilities.Deepgram.Language))
		}
		if cfg.Capabilities.Deepgram.SampleRate > 0 {
			dgOpts = append(dgOpts, deepgram.WithSampleRate(cfg.Capabilities.Deepgram.SampleRate))
		}
		if cfg.Capabilities.Deepgram.SmartFormat {
			dgOpts = append(dgOpts, deepgram.WithSmartFormat(true))
		}
		if cfg.Capabilities.Deepgram.BaseURL != "" {
			dgOpts = append(dgOpts, deepgram.WithBaseURL(cfg.Capabilities.Deepgram.BaseURL))
		}
		listener, err := deepgram.New(cfg.Capabilities.Deepgram.APIKey, dgOpts...)
		if err != nil {
			return ports.Capabilities{}, nil, fmt.Errorf("create speech input: %w", err)
		}

		caps := ports.Capabilities{
			Speech:    speech,
			Listener:  listener,
			Generator: generator,
			Voice:     listener,
		}
		return caps, capsCloser(caps), nil

	default:
		return ports.Capabilities{}, nil, fmt.Errorf("unknown capabilities mode %q", cfg.Capabilities.Mode)
	}
}

// capsCloser closes every capability that holds resources. The listener
// doubles as the voice-activity source, so it is closed once.
func capsCloser(caps ports.Capabilities) func() error {
	return func() error {
		var errs []error
		seen := map[io.Closer]bool{}
		for _, member := range []any{caps.Speech, caps.Listener, caps.Generator, caps.Voice} {
			closer, ok := member.(io.Closer)
			if !ok || seen[closer] {
				continue
			}
			seen[closer] = true
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// buildSinks wires the record sinks from config: storage always, webhook
// when a URL is configured.
func (c *Conductor) buildSinks(cfg *config.Config, interviewID string) []ports.RecordSink {
	storeOpts := []store.Option{}
	if interviewID != "" {
		storeOpts = append(storeOpts, store.WithTranscript(c.storage, interviewID))
	}
	sinks := []ports.RecordSink{store.New(c.storage, storeOpts...)}

	if cfg.Sinks.Webhook.URL != "" {
		webhookOpts := []webhook.Option{
			webhook.WithLogger(c.logger),
			webhook.WithFailOpen(cfg.Sinks.Webhook.FailOpen),
		}
		if cfg.Sinks.Webhook.Retries > 0 {
			webhookOpts = append(webhookOpts, webhook.WithRetries(cfg.Sinks.Webhook.Retries))
		}
		if cfg.Sinks.Webhook.Timeout != "" {
			if d, err := time.ParseDuration(cfg.Sinks.Webhook.Timeout); err == nil {
				webhookOpts = append(webhookOpts, webhook.WithTimeout(d))
			} else {
				c.logger.Warn("invalid webhook timeout, using default",
					slog.String("timeout", cfg.Sinks.Webhook.Timeout))
			}
		}
		if len(cfg.Sinks.Webhook.Headers) > 0 {
			webhookOpts = append(webhookOpts, webhook.WithHeaders(cfg.Sinks.Webhook.Headers))
		}
		sinks = append(sinks, webhook.New(cfg.Sinks.Webhook.URL, webhookOpts...))
	}

	return sinks
}

// watchConfig reloads configuration when the provider reports a change.
// Templates, API keys, and the question bank pick up the new values; the
// running server keeps its port.
func (c *Conductor) watchConfig() {
	err := c.config.Watch(c.ctx, func(newCfg *config.Config) {
		c.mu.Lock()
		c.cfg = newCfg
		c.mu.Unlock()

		if c.templates != nil {
			c.templates.Reload(newCfg.Templates)
		}
		if c.authn != nil {
			c.authn.Reload(newCfg.API.APIKeys)
		}
		c.logger.Info("configuration reloaded")
	})
	if err != nil && c.ctx.Err() == nil {
		c.logger.Error("config watch failed", slog.String("error", err.Error()))
	}
}

// Shutdown stops the server and closes storage, events, and config in
// order. Safe to call once after Start.
func (c *Conductor) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	var errs []error
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
		}
	}
	if err := c.storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	if err := c.events.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close events: %w", err))
	}
	if err := c.config.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close config: %w", err))
	}

	c.logger.Info("conductor stopped")
	return errors.Join(errs...)
}
