package app

import (
	"go.trai.ch/hearth/internal/adapters/logger"
	"go.trai.ch/hearth/internal/core/ports"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App *App
	// Console is the logger the CLI reconfigures for --json and --verbose.
	Console  *logger.Logger
	Progress ports.Progress
}

// NewComponents creates a new Components struct from dependencies.
func NewComponents(app *App, console *logger.Logger, progress ports.Progress) *Components {
	return &Components{
		App:      app,
		Console:  console,
		Progress: progress,
	}
}
