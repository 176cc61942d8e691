package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/hearth/internal/core/ports"
)

// LogBridge implements sdktrace.SpanProcessor by writing completed spans to the logger at debug level.
type LogBridge struct {
	log ports.Logger
}

// NewLogBridge returns a new LogBridge.
func NewLogBridge(log ports.Logger) *LogBridge {
	return &LogBridge{log: log}
}

// OnStart does nothing; spans are reported once they end.
func (b *LogBridge) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

// OnEnd logs the span name, duration, attributes and failure status.
func (b *LogBridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if b.log == nil || !s.SpanContext().IsValid() {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "span %s took %s", s.Name(), s.EndTime().Sub(s.StartTime()).Round(time.Microsecond))
	for _, kv := range s.Attributes() {
		sb.WriteString(" ")
		sb.WriteString(formatKeyValue(kv))
	}
	if s.Status().Code == codes.Error {
		desc := s.Status().Description
		if desc == "" {
			desc = "failed"
		}
		sb.WriteString(" error=")
		sb.WriteString(desc)
	}
	b.log.Debug(sb.String())
}

// ForceFlush does nothing.
func (b *LogBridge) ForceFlush(context.Context) error {
	return nil
}

// Shutdown does nothing.
func (b *LogBridge) Shutdown(context.Context) error {
	return nil
}

func formatKeyValue(kv attribute.KeyValue) string {
	return string(kv.Key) + "=" + kv.Value.Emit()
}
