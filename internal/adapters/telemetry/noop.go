package telemetry

import (
	"context"

	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
)

// NoOpTracer is a no-op implementation of ports.Tracer.
type NoOpTracer struct{}

// NewNoOpTracer creates a new NoOpTracer.
func NewNoOpTracer() *NoOpTracer {
	return &NoOpTracer{}
}

// Start creates a new no-op span.
func (t *NoOpTracer) Start(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	return ctx, &NoOpSpan{}
}

// EmitPlan does nothing.
func (t *NoOpTracer) EmitPlan(_ context.Context, _ []string) {}

// NoOpSpan is a no-op implementation of ports.Span.
type NoOpSpan struct{}

// End does nothing.
func (s *NoOpSpan) End() {}

// RecordError does nothing.
func (s *NoOpSpan) RecordError(_ error) {}

// SetAttribute does nothing.
func (s *NoOpSpan) SetAttribute(_ string, _ any) {}

// Write does nothing and returns the length of p.
func (s *NoOpSpan) Write(p []byte) (n int, err error) {
	return len(p), nil
}

// NoOpProgress is a no-op implementation of ports.Progress.
type NoOpProgress struct{}

// Track returns a task that records nothing.
func (NoOpProgress) Track(string) ports.ProgressTask { return noOpTask{} }

// Record does nothing.
func (NoOpProgress) Record(string) error { return nil }

// Finish reports an empty recording.
func (NoOpProgress) Finish() (domain.ProgressSummary, error) { return domain.ProgressSummary{}, nil }

// Replay reports that no journal exists.
func (NoOpProgress) Replay(string) (domain.ProgressSummary, bool, error) {
	return domain.ProgressSummary{}, false, nil
}

// Close does nothing.
func (NoOpProgress) Close() error { return nil }

type noOpTask struct{}

func (noOpTask) Log(string)     {}
func (noOpTask) Cached()        {}
func (noOpTask) Complete(error) {}
