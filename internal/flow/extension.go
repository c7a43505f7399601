package flow

import (
	"github.com/tjfontaine/interview-conductor/internal/core/domain"
	"github.com/tjfontaine/interview-conductor/internal/session"
)

// extensionPermitted reports whether the session may still be extended:
// fewer than the maximum extensions used and elapsed time under the
// extended ceiling. It does not consider answer quality.
func extensionPermitted(st *session.State) bool {
	if st.ExtensionsUsed() >= session.MaxExtensions {
		return false
	}
	return st.ElapsedSeconds() < st.Plan().ExtendedSeconds()
}

// shouldExtend is the full extension decision: permitted, triggered by a
// detailed or excellent answer, and more than two topics still uncovered.
// Granting is done by the caller via State.GrantExtension.
func shouldExtend(st *session.State, quality domain.QualityLabel) bool {
	if !extensionPermitted(st) {
		return false
	}
	if quality != domain.QualityDetailed && quality != domain.QualityExcellent {
		return false
	}
	return st.UncoveredCount() > 2
}
