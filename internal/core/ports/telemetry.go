package ports

import (
	"context"
	"io"

	"go.trai.ch/hearth/internal/core/domain"
)

// Tracer is the entry point for creating spans.
type Tracer interface {
	// Start creates a new span.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// EmitPlan signals which artifacts an attempt is about to work on.
	EmitPlan(ctx context.Context, artifactNames []string)
}

// Span represents a unit of work.
type Span interface {
	io.Writer
	// End completes the span.
	End()
	// RecordError records an error for the span.
	RecordError(err error)
	// SetAttribute adds a key-value pair to the span.
	SetAttribute(key string, value any)
}

// SpanConfig holds configuration for a starting span.
type SpanConfig struct {
	Attributes map[string]any
}

// SpanOption is a functional option for configuring a span.
type SpanOption func(*SpanConfig)

// WithAttribute sets an attribute when the span starts.
func WithAttribute(key string, value any) SpanOption {
	return func(c *SpanConfig) {
		if c.Attributes == nil {
			c.Attributes = make(map[string]any)
		}
		c.Attributes[key] = value
	}
}

// Progress records per-artifact progress for display.
type Progress interface {
	// Track starts recording one unit of work. Tracking the same key again continues it.
	Track(key string) ProgressTask
	// Record starts a fresh recording mirrored to a journal at journalPath.
	Record(journalPath string) error
	// Finish closes the current journal and summarises the recording.
	Finish() (domain.ProgressSummary, error)
	// Replay summarises a journal left by an earlier recording. ok is false when none exists.
	Replay(journalPath string) (summary domain.ProgressSummary, ok bool, err error)
	// Close flushes the recording.
	Close() error
}

// ProgressTask is one tracked unit of work.
type ProgressTask interface {
	// Log appends a line of output to the task.
	Log(msg string)
	// Cached marks the task as satisfied without work.
	Cached()
	// Complete finishes the task, successfully when err is nil.
	Complete(err error)
}
