// Package config loads conductor configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the root configuration for both conductor binaries.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Storage      StorageConfig      `koanf:"storage"`
	Interview    InterviewConfig    `koanf:"interview"`
	Capabilities CapabilitiesConfig `koanf:"capabilities"`
	Prompt       PromptConfig       `koanf:"prompt"`
	QuestionBank map[string]string  `koanf:"question_bank"`
	Sinks        SinksConfig        `koanf:"sinks"`
	API          APIConfig          `koanf:"api"`
	Room         RoomConfig         `koanf:"room"`
	Templates    []TemplateConfig   `koanf:"templates"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	Type     string         `koanf:"type"` // sqlite, memory, jsonfile
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	JSONFile JSONFileConfig `koanf:"jsonfile"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type JSONFileConfig struct {
	Dir string `koanf:"dir"`
}

// InterviewConfig is the one-shot session definition consumed by
// cmd/conductor: the job requirements and candidate profile the planner
// works from.
type InterviewConfig struct {
	RoleTitle       string   `koanf:"role_title"`
	Skills          []string `koanf:"skills"`
	Projects        []string `koanf:"projects"`
	ExperienceCount int      `koanf:"experience_count"`
	CandidateName   string   `koanf:"candidate_name"`
	JDSummary       string   `koanf:"jd_summary"`
	ResumeSummary   string   `koanf:"resume_summary"`

	// CustomDuration, when positive, overrides the planner formula.
	CustomDuration int `koanf:"custom_duration"`
}

type CapabilitiesConfig struct {
	// Mode selects the adapter set: "live" (Gemini/Deepgram/Google TTS)
	// or "console" (stdio, for local runs).
	Mode     string         `koanf:"mode"`
	Gemini   GeminiConfig   `koanf:"gemini"`
	Deepgram DeepgramConfig `koanf:"deepgram"`
	TTS      TTSConfig      `koanf:"tts"`
}

type GeminiConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

type DeepgramConfig struct {
	APIKey      string `koanf:"api_key"`
	Model       string `koanf:"model"`
	Language    string `koanf:"language"`
	SampleRate  int    `koanf:"sample_rate"`
	SmartFormat bool   `koanf:"smart_format"`
	BaseURL     string `koanf:"base_url"`
}

type TTSConfig struct {
	APIKey   string `koanf:"api_key"`
	Voice    string `koanf:"voice"`
	Language string `koanf:"language"`
	BaseURL  string `koanf:"base_url"`
}

type PromptConfig struct {
	SystemPrompt string `koanf:"system_prompt"`
	TokenBudget  int    `koanf:"token_budget"`
}

type SinksConfig struct {
	Webhook WebhookSinkConfig `koanf:"webhook"`
}

type WebhookSinkConfig struct {
	URL      string            `koanf:"url"`
	Timeout  string            `koanf:"timeout"` // duration string like "5s"
	Retries  int               `koanf:"retries"`
	FailOpen bool              `koanf:"fail_open"`
	Headers  map[string]string `koanf:"headers"`
}

type APIConfig struct {
	APIKeys []APIKeyConfig `koanf:"api_keys"`
}

type APIKeyConfig struct {
	KeyHash     string `koanf:"key_hash"`
	Description string `koanf:"description"`
}

// RoomConfig configures the media-room credentials returned by the start
// endpoint. Token issuance is out of scope; either a pre-issued token is
// configured or mock values are returned.
type RoomConfig struct {
	URL   string `koanf:"url"`
	Token string `koanf:"token"`
}

type TemplateConfig struct {
	ID          string   `koanf:"id"`
	Name        string   `koanf:"name"`
	Role        string   `koanf:"role"`
	Description string   `koanf:"description"`
	Duration    int      `koanf:"duration"`
	Topics      []string `koanf:"topics"`
	Difficulty  string   `koanf:"difficulty"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from path, applies CONDUCTOR_ environment
// overrides, and fills defaults. A missing file is not an error; env vars
// and defaults still apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	// Environment variables override file values: CONDUCTOR_SERVER__PORT
	// becomes server.port.
	if err := k.Load(env.Provider("CONDUCTOR_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CONDUCTOR_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Substitute ${VAR} placeholders in secret fields so keys can be kept
	// out of the file.
	cfg.Capabilities.Gemini.APIKey = substituteEnvVars(cfg.Capabilities.Gemini.APIKey)
	cfg.Capabilities.Deepgram.APIKey = substituteEnvVars(cfg.Capabilities.Deepgram.APIKey)
	cfg.Capabilities.TTS.APIKey = substituteEnvVars(cfg.Capabilities.TTS.APIKey)
	cfg.Room.Token = substituteEnvVars(cfg.Room.Token)

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"server.port":                        8002,
		"storage.type":                       "sqlite",
		"storage.sqlite.path":                "./data/conductor.db",
		"storage.jsonfile.dir":               "./data",
		"capabilities.mode":                  "console",
		"capabilities.gemini.model":          "gemini-2.0-flash",
		"capabilities.deepgram.model":        "nova-3",
		"capabilities.deepgram.language":     "en-US",
		"capabilities.deepgram.sample_rate":  16000,
		"capabilities.deepgram.smart_format": true,
		"capabilities.tts.voice":             "en-US-Chirp3-HD-Despina",
		"capabilities.tts.language":          "en-US",
		"prompt.token_budget":                6000,
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
