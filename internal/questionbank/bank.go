// Package questionbank holds the static fallback questions used when
// dynamic question generation is exhausted.
package questionbank

import (
	"fmt"
	"sync"
)

// defaultTemplate is the generic fallback for topics without a hand-written
// question.
const defaultTemplate = "Can you describe your experience with %s and any specific challenges you've faced?"

// simplifiedTemplate is the single-shot question asked when the candidate
// does not answer a technical question at all.
const simplifiedTemplate = "Have you used %s in any of your projects?"

// Bank maps known topic names to hand-written fallback questions.
type Bank struct {
	mu        sync.RWMutex
	questions map[string]string
}

// New creates a bank seeded with the built-in entries.
func New() *Bank {
	return &Bank{
		questions: map[string]string{
			"Python":           "Can you walk me through a challenging Python project you've worked on?",
			"Machine Learning": "Tell me about a machine learning model you've built and deployed.",
			"Deep Learning":    "What's your experience with deep learning frameworks like PyTorch or TensorFlow?",
			"Generative AI":    "How have you worked with Large Language Models or generative AI?",
		},
	}
}

// Merge adds or replaces entries, typically from configuration. Hot-reload
// calls this again with the new config.
func (b *Bank) Merge(entries map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, question := range entries {
		if question == "" {
			continue
		}
		b.questions[topic] = question
	}
}

// Question returns the fallback question for a topic: a hand-written entry
// when one exists, otherwise the generic template.
func (b *Bank) Question(topic string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if q, ok := b.questions[topic]; ok {
		return q
	}
	return fmt.Sprintf(defaultTemplate, topic)
}

// Simplified returns the single-attempt fallback question for a topic.
func (b *Bank) Simplified(topic string) string {
	return fmt.Sprintf(simplifiedTemplate, topic)
}
