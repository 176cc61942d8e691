// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/hearth/internal/adapters/config"
	_ "go.trai.ch/hearth/internal/adapters/fs"
	_ "go.trai.ch/hearth/internal/adapters/instancelock"
	_ "go.trai.ch/hearth/internal/adapters/logger"
	_ "go.trai.ch/hearth/internal/adapters/manifest"
	_ "go.trai.ch/hearth/internal/adapters/telemetry"
	_ "go.trai.ch/hearth/internal/adapters/telemetry/progrock"
	// Register app nodes.
	_ "go.trai.ch/hearth/internal/app"
)
