// Package quality classifies answer depth from simple length and keyword
// heuristics. The label drives follow-up and extension decisions only.
package quality

import (
	"strings"
	"unicode/utf8"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
)

// detailKeywords mark an answer as detailed when it is long enough.
var detailKeywords = []string{"implemented", "developed", "built", "designed", "optimized"}

// Classify labels an answer. Rules are checked in priority order and the
// first match wins, so a very long answer that contains a detail keyword is
// detailed, not excellent. Lengths count runes, not bytes.
func Classify(text string) domain.QualityLabel {
	trimmed := strings.TrimSpace(text)
	length := utf8.RuneCountInString(trimmed)
	lower := strings.ToLower(text)

	if length < 20 || strings.Contains(lower, "i don't know") {
		return domain.QualityBrief
	}

	if length > 100 {
		for _, kw := range detailKeywords {
			if strings.Contains(lower, kw) {
				return domain.QualityDetailed
			}
		}
	}

	if length > 200 {
		return domain.QualityExcellent
	}

	return domain.QualityNormal
}
