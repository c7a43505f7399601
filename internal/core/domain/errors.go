package domain

import (
	"errors"
	"fmt"
)

// FlowErrorClass categorizes a failure on the session flow path. The class
// decides what the orchestrator does next: fatal aborts before the flow
// starts, transient degrades after retries, no-answer is a scheduling
// outcome, and unexpected is caught once at the top of the flow.
type FlowErrorClass string

const (
	// FlowErrorFatal marks capability construction or initialization
	// failures. They abort the session and propagate to the caller.
	FlowErrorFatal FlowErrorClass = "fatal"

	// FlowErrorTransient marks retryable capability failures (speech
	// output, question generation). They never reach the candidate.
	FlowErrorTransient FlowErrorClass = "transient"

	// FlowErrorNoAnswer marks a timeout or too-short transcript. Not an
	// error in the user-visible sense; it drives re-prompting.
	FlowErrorNoAnswer FlowErrorClass = "no_answer"

	// FlowErrorUnexpected marks anything escaping the per-call retry
	// wrappers mid-flow.
	FlowErrorUnexpected FlowErrorClass = "unexpected"
)

// FlowError is the canonical error type on the session flow path.
type FlowError struct {
	// Class is the failure category.
	Class FlowErrorClass `json:"class"`

	// Op names the operation that failed (e.g. "speech_output").
	Op string `json:"op"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Err is the wrapped cause, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *FlowError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Class, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *FlowError) Unwrap() error {
	return e.Err
}

// WithOp sets the operation name.
func (e *FlowError) WithOp(op string) *FlowError {
	e.Op = op
	return e
}

// WithCause wraps an underlying error.
func (e *FlowError) WithCause(err error) *FlowError {
	e.Err = err
	return e
}

// NewFlowError creates a new flow error.
func NewFlowError(class FlowErrorClass, message string) *FlowError {
	return &FlowError{
		Class:   class,
		Message: message,
	}
}

// ErrFatal creates a fatal initialization error.
func ErrFatal(message string) *FlowError {
	return NewFlowError(FlowErrorFatal, message)
}

// ErrTransient creates a transient capability error.
func ErrTransient(message string) *FlowError {
	return NewFlowError(FlowErrorTransient, message)
}

// ErrNoAnswer creates a no-answer outcome.
func ErrNoAnswer(message string) *FlowError {
	return NewFlowError(FlowErrorNoAnswer, message)
}

// ErrUnexpected creates an unexpected mid-flow error.
func ErrUnexpected(message string) *FlowError {
	return NewFlowError(FlowErrorUnexpected, message)
}

// IsClass reports whether err (or anything it wraps) is a FlowError of the
// given class.
func IsClass(err error, class FlowErrorClass) bool {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Class == class
	}
	return false
}

// IsFatal reports whether err is a fatal flow error.
func IsFatal(err error) bool {
	return IsClass(err, FlowErrorFatal)
}

// IsNoAnswer reports whether err is a no-answer outcome.
func IsNoAnswer(err error) bool {
	return IsClass(err, FlowErrorNoAnswer)
}

// ErrInterviewNotFound is returned by stores when an interview ID does not
// exist. The record API maps it to a 404.
var ErrInterviewNotFound = errors.New("interview not found")
