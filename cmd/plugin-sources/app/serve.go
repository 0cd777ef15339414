package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flowcraft/plugin-sources/internal/app"
	"github.com/flowcraft/plugin-sources/internal/telemetry"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the plugin sources API server",
		Long: `Start the API server serving the configured plugin package sources.

Sources are read from the configuration file, or from the database when a database
section is configured. Changes to the configuration file are applied without a restart.
See the examples/ directory for sample configurations.`,
		RunE: runServe,
	}

	cmd.Flags().String("address", ":8080", "Address to listen on")
	cmd.Flags().Duration("request-timeout", 5*time.Minute, "Maximum duration of a request, loads included")
	addConfigFlag(cmd)

	if err := viper.BindPFlag("address", cmd.Flags().Lookup("address")); err != nil {
		panic(err)
	}
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	requestTimeout, err := cmd.Flags().GetDuration("request-timeout")
	if err != nil {
		return fmt.Errorf("failed to get request-timeout flag: %w", err)
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	opts := []app.SourcesAppOptions{
		app.WithConfig(cfg),
		app.WithConfigPath(path),
		app.WithAddress(viper.GetString("address")),
		app.WithRequestTimeout(requestTimeout),
		app.WithTracerProvider(tel.TracerProvider()),
		app.WithMeterProvider(tel.MeterProvider()),
	}
	if cfg.Telemetry.PrometheusEnabled() {
		opts = append(opts, app.WithMetricsHandler(promhttp.Handler()))
	}

	sourcesApp, err := app.NewSourcesApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- sourcesApp.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return sourcesApp.Stop(defaultGracefulTimeout)
}
