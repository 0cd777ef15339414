// Package app provides application lifecycle management for the plugin sources server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/flowcraft/plugin-sources/internal/config"
)

// SourcesApp encapsulates all components needed to run the plugin sources API server.
// It provides lifecycle management and graceful shutdown capabilities.
type SourcesApp struct {
	config     *config.Config
	configPath string
	components *AppComponents
	httpServer *http.Server

	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the configuration watcher and the HTTP server.
// It blocks until the HTTP server stops or encounters an error.
func (app *SourcesApp) Start() error {
	if app.configPath != "" {
		go func() {
			err := config.Watch(app.ctx, app.configPath, app.components.Storage.Reload)
			if err != nil {
				slog.Error("Configuration watcher failed", "error", err)
			}
		}()
	}

	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the application with the given timeout
func (app *SourcesApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := app.httpServer.Shutdown(shutdownCtx)

	// Cancelled after the shutdown so that in-flight loads can finish
	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *SourcesApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *SourcesApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the wired application components
func (app *SourcesApp) Components() *AppComponents {
	return app.components
}
