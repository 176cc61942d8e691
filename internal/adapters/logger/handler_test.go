package logger_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"go.trai.ch/hearth/internal/adapters/logger"
)

func TestPrettyHandler_Handle_Levels(t *testing.T) {
	tests := []struct {
		name       string
		level      slog.Level
		msg        string
		goldenName string
	}{
		{
			name:       "info level",
			level:      slog.LevelInfo,
			msg:        "information message",
			goldenName: "handler_info",
		},
		{
			name:       "warn level",
			level:      slog.LevelWarn,
			msg:        "warning message",
			goldenName: "handler_warn",
		},
		{
			name:       "error level",
			level:      slog.LevelError,
			msg:        "error message",
			goldenName: "handler_error",
		},
		{
			name:       "debug level filtered",
			level:      slog.LevelDebug,
			msg:        "debug message",
			goldenName: "handler_debug_filtered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", "1")

			buf := &bytes.Buffer{}
			handler := logger.NewPrettyHandler(buf, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			})
			lg := slog.New(handler)

			lg.Log(t.Context(), tt.level, tt.msg)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestPrettyHandler_Events(t *testing.T) {
	tests := []struct {
		name       string
		level      slog.Level
		msg        string
		attrs      []any
		goldenName string
	}{
		{
			name:       "event prefix follows the level icon",
			level:      slog.LevelWarn,
			msg:        "quarantining corrupt live artifact",
			attrs:      []any{"event", "recovery.quarantine", "artifact", "client", "authority", "lockfile"},
			goldenName: "handler_event_warn",
		},
		{
			name:       "empty attributes are dropped",
			level:      slog.LevelInfo,
			msg:        "recovery state Clean",
			attrs:      []any{"event", "recovery.assess", "artifact", "", "state", "Clean"},
			goldenName: "handler_event_info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", "1")

			buf := &bytes.Buffer{}
			lg := slog.New(logger.NewPrettyHandler(buf, nil))

			lg.Log(t.Context(), tt.level, tt.msg, tt.attrs...)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestPrettyHandler_WithAttrsAndGroup(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	h := logger.NewPrettyHandler(buf, nil)
	lg := slog.New(h.WithAttrs([]slog.Attr{slog.String("pack", "demo")}).WithGroup("run"))

	lg.Info("start", "detail", "two words")

	g := goldie.New(t)
	g.Assert(t, "handler_attrs_group", buf.Bytes())
}

func TestPrettyHandler_Enabled(t *testing.T) {
	level := &slog.LevelVar{}
	h := logger.NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: level})

	assert.False(t, h.Enabled(t.Context(), slog.LevelDebug))
	level.Set(slog.LevelDebug)
	assert.True(t, h.Enabled(t.Context(), slog.LevelDebug), "the handler follows a LevelVar")
}
