// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/depot/internal/adapters/config"
	_ "go.trai.ch/depot/internal/adapters/logger"
	_ "go.trai.ch/depot/internal/adapters/telemetry"
	_ "go.trai.ch/depot/internal/adapters/telemetry/progrock"
	// Register app nodes.
	_ "go.trai.ch/depot/internal/app"
)
