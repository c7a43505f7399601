package runtime

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/interview-conductor/internal/core/ports"
)

const tracerName = "github.com/tjfontaine/interview-conductor/internal/runtime"

// tracedCapabilities wraps the speech and generation ports with spans.
// Voice activity is a passive event stream and is passed through.
func tracedCapabilities(caps ports.Capabilities) ports.Capabilities {
	tracer := otel.Tracer(tracerName)
	traced := caps
	if caps.Speech != nil {
		traced.Speech = &tracedSpeech{inner: caps.Speech, tracer: tracer}
	}
	if caps.Listener != nil {
		traced.Listener = &tracedListener{inner: caps.Listener, tracer: tracer}
	}
	if caps.Generator != nil {
		traced.Generator = &tracedGenerator{inner: caps.Generator, tracer: tracer}
	}
	return traced
}

type tracedSpeech struct {
	inner  ports.SpeechOutput
	tracer trace.Tracer
}

func (t *tracedSpeech) Speak(ctx context.Context, text string, ssml bool) (*ports.SpeakResult, error) {
	ctx, span := t.tracer.Start(ctx, "capability.speak",
		trace.WithAttributes(
			attribute.Int("speech.chars", len(text)),
			attribute.Bool("speech.ssml", ssml),
		))
	defer span.End()

	result, err := t.inner.Speak(ctx, text, ssml)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (t *tracedSpeech) Close() error { return t.inner.Close() }

type tracedListener struct {
	inner  ports.SpeechInput
	tracer trace.Tracer
}

func (t *tracedListener) CaptureUtterance(ctx context.Context) (<-chan ports.TranscriptSegment, error) {
	ctx, span := t.tracer.Start(ctx, "capability.capture")
	defer span.End()

	segments, err := t.inner.CaptureUtterance(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return segments, err
}

func (t *tracedListener) Close() error { return t.inner.Close() }

type tracedGenerator struct {
	inner  ports.QuestionGenerator
	tracer trace.Tracer
}

func (t *tracedGenerator) GenerateQuestion(ctx context.Context, prompt string) (string, error) {
	ctx, span := t.tracer.Start(ctx, "capability.generate_question",
		trace.WithAttributes(attribute.Int("prompt.chars", len(prompt))))
	defer span.End()

	question, err := t.inner.GenerateQuestion(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return question, err
}
