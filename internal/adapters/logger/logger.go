// Package logger implements a logging adapter using log/slog.
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
)

// messager describes an error that can report its own message without the chain.
// zerr.Error provides it.
type messager interface {
	Message() string
}

// metadataer describes an error carrying key/value context, as zerr.Error does.
type metadataer interface {
	Metadata() map[string]any
}

// Logger implements ports.Logger using log/slog.
type Logger struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	level    slog.LevelVar
	jsonMode bool
	output   io.Writer
}

// New creates a new Logger writing pretty output to stderr at info level.
func New() *Logger {
	l := &Logger{output: os.Stderr}
	l.level.Set(slog.LevelInfo)
	l.rebuild()
	return l
}

var _ ports.Logger = (*Logger)(nil)

// SetOutput updates the logger's output destination, keeping the current mode.
// If w is nil, os.Stderr is used.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w == nil {
		w = os.Stderr
	}
	l.output = w
	l.rebuild()
}

// SetJSON switches between JSON and pretty logging.
func (l *Logger) SetJSON(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.jsonMode = enable
	l.rebuild()
}

// SetVerbose enables debug records, which include every promotion.
func (l *Logger) SetVerbose(enable bool) {
	if enable {
		l.level.Set(slog.LevelDebug)
		return
	}
	l.level.Set(slog.LevelInfo)
}

// rebuild must be called with mu held.
func (l *Logger) rebuild() {
	opts := &slog.HandlerOptions{Level: &l.level}
	if l.jsonMode {
		l.logger = slog.New(slog.NewJSONHandler(l.output, opts))
		return
	}
	l.logger = slog.New(NewPrettyHandler(l.output, opts))
}

// Debug logs a diagnostic message.
func (l *Logger) Debug(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Debug(msg)
}

// Info logs an informational message.
func (l *Logger) Info(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Info(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Warn(msg)
}

// Event logs a structured engine decision.
func (l *Logger) Event(ev domain.Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	attrs := []any{slog.String("event", string(ev.Kind))}
	add := func(key, value string) {
		if value != "" {
			attrs = append(attrs, slog.String(key, value))
		}
	}
	add("artifact", ev.Artifact)
	add("decision", string(ev.Decision))
	add("expected", ev.Expected)
	add("observed", ev.Observed)
	add("authority", string(ev.Authority))
	if ev.Authority != "" {
		attrs = append(attrs, slog.Int("remote_consulted", ev.RemoteConsulted))
	}
	add("state", string(ev.State))
	add("detail", ev.Detail)

	l.logger.Log(context.Background(), eventLevel(ev), eventMessage(ev), attrs...)
}

func eventLevel(ev domain.Event) slog.Level {
	switch ev.Kind {
	case domain.EventPromote, domain.EventResume:
		return slog.LevelDebug
	case domain.EventQuarantine, domain.EventDiscardStaged, domain.EventSnapshotRejected,
		domain.EventIntegrityRetry, domain.EventRefetch:
		return slog.LevelWarn
	case domain.EventFail:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func eventMessage(ev domain.Event) string {
	switch ev.Kind {
	case domain.EventAssess:
		return "recovery state " + string(ev.State)
	case domain.EventResume:
		return "resuming staged artifact"
	case domain.EventDiscardStaged:
		return "discarding corrupt staged bytes"
	case domain.EventQuarantine:
		return "quarantining corrupt live artifact"
	case domain.EventRefetch:
		return "re-fetching corrupt artifact"
	case domain.EventRollback:
		if ev.Decision == domain.DecisionSkip {
			return "artifact already matches snapshot"
		}
		return "restoring artifact from snapshot"
	case domain.EventSnapshotRejected:
		return "snapshot failed verification"
	case domain.EventFail:
		return "no recovery path available"
	case domain.EventPromote:
		return "promoted"
	case domain.EventIntegrityRetry:
		return "download failed verification, retrying"
	case domain.EventLockfile:
		return "lockfile written"
	default:
		return string(ev.Kind)
	}
}

// Error logs an error with its cause chain and, when classified, its remediation.
func (l *Logger) Error(err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err == nil {
		return
	}

	if l.jsonMode {
		attrs := []any{"error", err.Error()}
		if kind, ok := domain.KindOf(err); ok {
			attrs = append(attrs, "kind", string(kind))
		}
		if rem := domain.RemediationOf(err); rem != "" {
			attrs = append(attrs, "remediation", rem)
		}
		l.logger.Error("operation failed", attrs...)
		return
	}

	msg := formatErrorEntries(collectErrorEntries(err))
	if rem := domain.RemediationOf(err); rem != "" {
		msg += "\n\n  Remediation: " + rem
	}
	l.logger.Error(msg)
}

// ErrorEntry is one level of an error chain.
type ErrorEntry struct {
	Message  string
	Metadata map[string]any
}

// collectErrorEntries walks the chain. zerr and domain errors contribute their own message
// and continue; any other error contributes its full text and ends the walk.
func collectErrorEntries(err error) []ErrorEntry {
	var entries []ErrorEntry
	for current := err; current != nil; {
		switch e := current.(type) {
		case *domain.Error:
			entry := ErrorEntry{Message: string(e.Kind) + ": " + e.Message}
			if e.Artifact != "" {
				entry.Metadata = map[string]any{"artifact": e.Artifact}
			}
			entries = append(entries, entry)
			current = e.Err
		case messager:
			entry := ErrorEntry{Message: e.Message()}
			if md, ok := current.(metadataer); ok {
				entry.Metadata = md.Metadata()
				if entry.Metadata == nil {
					entry.Metadata = map[string]any{}
				}
			}
			entries = append(entries, entry)
			current = errors.Unwrap(current)
		default:
			entries = append(entries, ErrorEntry{Message: current.Error()})
			current = nil
		}
	}
	return entries
}

func formatErrorEntries(entries []ErrorEntry) string {
	var lines []string
	for i, e := range entries {
		msgLines := strings.Split(e.Message, "\n")
		prefix, indent := "Error: ", "       "
		if i > 0 {
			if i == 1 {
				lines = append(lines, "", "  Caused by:")
			}
			prefix, indent = "    → ", "      "
		}
		lines = append(lines, prefix+msgLines[0])
		for _, line := range msgLines[1:] {
			lines = append(lines, indent+line)
		}
		for _, key := range sortedKeys(e.Metadata) {
			lines = append(lines, indent+key+": "+formatValue(e.Metadata[key]))
		}
	}
	return strings.Join(lines, "\n")
}
