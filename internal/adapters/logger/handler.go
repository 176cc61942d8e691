package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"go.trai.ch/hearth/internal/ui/output"
	"go.trai.ch/hearth/internal/ui/style"
)

// eventKey is the attribute carrying an engine event kind. The pretty handler shows it as a prefix.
const eventKey = "event"

// PrettyHandler is a slog.Handler producing coloured, human-readable lines.
// Empty string attributes are dropped, which keeps engine events short.
type PrettyHandler struct {
	out   *termenv.Output
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewPrettyHandler creates a PrettyHandler writing to w.
// The handler follows opts.Level as it changes, so a *slog.LevelVar can be adjusted later.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}

	return &PrettyHandler{
		out:   output.New(w),
		level: level,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes the record.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var icon string
	var color termenv.Color

	switch {
	case r.Level >= slog.LevelError:
		icon = style.Cross
		color = termenv.RGBColor(string(style.Red))
	case r.Level >= slog.LevelWarn:
		icon = style.Warning
		color = termenv.RGBColor(string(style.Yellow))
	case r.Level < slog.LevelInfo:
		icon = style.Dot
		color = termenv.RGBColor(string(style.Slate))
	default:
		color = termenv.RGBColor(string(style.Slate))
	}

	var event string
	attrParts := make([]string, 0, len(h.attrs)+r.NumAttrs())
	add := func(attr slog.Attr) bool {
		switch {
		case attr.Key == eventKey && h.group == "":
			event = attr.Value.String()
		case attr.Value.Kind() == slog.KindString && attr.Value.String() == "":
			// dropped
		default:
			attrParts = append(attrParts, formatAttr(h.group, attr))
		}
		return true
	}
	for _, attr := range h.attrs {
		add(attr)
	}
	r.Attrs(add)

	msg := r.Message
	if event != "" {
		msg = "[" + event + "] " + msg
	}
	if icon != "" {
		msg = icon + " " + msg
	}
	if len(attrParts) > 0 {
		msg += " " + strings.Join(attrParts, " ")
	}

	styled := h.out.String(msg).Foreground(color)
	_, err := h.out.WriteString(styled.String() + "\n")

	return err
}

// WithAttrs returns a new Handler with the given attributes appended.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)

	return &PrettyHandler{
		out:   h.out,
		level: h.level,
		attrs: newAttrs,
		group: h.group,
	}
}

// WithGroup returns a new Handler with the given group name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	return &PrettyHandler{
		out:   h.out,
		level: h.level,
		attrs: h.attrs,
		group: name,
	}
}

// formatAttr renders key=value, prefixing the key with the group when set.
// Values containing spaces are quoted so lines stay parseable.
func formatAttr(group string, attr slog.Attr) string {
	key := attr.Key
	if group != "" {
		key = group + "." + key
	}
	value := attr.Value.String()
	if strings.ContainsAny(value, " \t") {
		value = `"` + value + `"`
	}
	return key + "=" + value
}
