// Package style holds the colours and icons shared by log and report output.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/hearth/internal/core/domain"
)

// Colours.
var (
	Ember  = lipgloss.Color("#E8590C")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Icons.
const (
	Check    = "✓"
	Cross    = "✗"
	Warning  = "!"
	Dot      = "●"
	Circle   = "○"
	Question = "?"
)

// Icon returns the marker used for an artifact state in reports.
func Icon(state domain.ArtifactState) string {
	switch state {
	case domain.StateSatisfied:
		return Check
	case domain.StateMissing:
		return Circle
	case domain.StateChecksumMismatch:
		return Cross
	default:
		return Question
	}
}

// Color returns the colour used for an artifact state in reports.
func Color(state domain.ArtifactState) lipgloss.Color {
	switch state {
	case domain.StateSatisfied:
		return Green
	case domain.StateMissing:
		return Slate
	case domain.StateChecksumMismatch:
		return Red
	default:
		return Yellow
	}
}

// Heading renders a bold section title.
func Heading(s string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(Ember).Render(s)
}
