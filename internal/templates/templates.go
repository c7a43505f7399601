// Package templates serves the reusable interview presets exposed by the
// record API. Built-in presets are always available; config can add more.
package templates

import (
	"sync"
	"time"

	"github.com/tjfontaine/interview-conductor/internal/config"
	"github.com/tjfontaine/interview-conductor/internal/core/domain"
)

// Registry holds the template catalog in declaration order. Safe for
// concurrent use; Reload swaps the configured set on config changes.
type Registry struct {
	mu        sync.RWMutex
	templates []domain.InterviewTemplate
}

// New builds a registry of the built-in templates plus any configured ones.
// A configured template with a built-in ID replaces the built-in.
func New(configured []config.TemplateConfig) *Registry {
	r := &Registry{}
	r.Reload(configured)
	return r
}

// Reload rebuilds the catalog from the built-ins plus the given configured
// templates.
func (r *Registry) Reload(configured []config.TemplateConfig) {
	templates := builtins()
	for _, tc := range configured {
		t := fromConfig(tc)
		replaced := false
		for i := range templates {
			if templates[i].ID == t.ID {
				templates[i] = t
				replaced = true
				break
			}
		}
		if !replaced {
			templates = append(templates, t)
		}
	}

	r.mu.Lock()
	r.templates = templates
	r.mu.Unlock()
}

// List returns the full catalog.
func (r *Registry) List() []domain.InterviewTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.InterviewTemplate, len(r.templates))
	copy(result, r.templates)
	return result
}

// Get looks a template up by ID.
func (r *Registry) Get(id string) (domain.InterviewTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.templates {
		if t.ID == id {
			return t, true
		}
	}
	return domain.InterviewTemplate{}, false
}

func builtins() []domain.InterviewTemplate {
	return []domain.InterviewTemplate{
		{
			ID:          "template-frontend",
			Name:        "Frontend Engineer",
			Role:        "Frontend Engineer",
			Description: "Covers UI fundamentals, performance, and accessibility.",
			Settings: domain.InterviewSettings{
				Duration:     60,
				DurationUnit: "minutes",
				Topics:       []string{"React", "TypeScript", "System Design"},
				Difficulty:   "mid",
				IncludeAudio: true,
			},
		},
		{
			ID:          "template-llm",
			Name:        "LLM Engineer",
			Role:        "LLM Engineer",
			Description: "Focus on LLM deployment, prompt engineering, and RAG.",
			Settings: domain.InterviewSettings{
				Duration:     75,
				DurationUnit: "minutes",
				Topics:       []string{"Python", "LLM Ops", "RAG Architecture"},
				Difficulty:   "senior",
				IncludeAudio: true,
			},
		},
	}
}

func fromConfig(tc config.TemplateConfig) domain.InterviewTemplate {
	return domain.InterviewTemplate{
		ID:          tc.ID,
		Name:        tc.Name,
		Role:        tc.Role,
		Description: tc.Description,
		Settings: domain.InterviewSettings{
			Duration:     tc.Duration,
			DurationUnit: "minutes",
			Topics:       tc.Topics,
			Difficulty:   tc.Difficulty,
			IncludeAudio: true,
		},
		UpdatedAt: time.Now().UTC(),
	}
}
