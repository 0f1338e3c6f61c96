// Package app is the composition root: it assembles the logger, the
// transformer registry, metrics and the manifest loader into a runnable
// application.
package app

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/fitgrid/internal/registry"
	"github.com/vk/fitgrid/internal/telemetry"
)

// App encapsulates the application's dependencies and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	reg        *registry.Registry
	metrics    *telemetry.Metrics
	httpServer *http.Server
}

// New constructs a fully initialized App with its own isolated logger and
// registry. Passing no modules registers the core module set.
func New(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("Transformer modules registered.", "count", len(modules), "names", reg.Names())

	return &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		reg:     reg,
		metrics: telemetry.New(),
	}
}

// Registry returns the application's registry. Primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.reg
}
