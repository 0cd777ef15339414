package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flowcraft/plugin-sources/internal/app"
	"github.com/flowcraft/plugin-sources/internal/app/storage"
	"github.com/flowcraft/plugin-sources/internal/config"
	"github.com/flowcraft/plugin-sources/internal/store"
)

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Import the modules of the configured sources",
		Long: `Import every declared module of the configured sources into the module cache
and print the load report as JSON. The command fails when any module failed to load.

Examples:
  # Load all sources
  plugin-sources load --config config.yaml

  # Load selected sources
  plugin-sources load --config config.yaml --source upstream --source local`,
		RunE: runLoad,
	}
	addConfigFlag(cmd)
	cmd.Flags().StringSlice("source", nil, "Name of a source to load (repeatable, default all)")
	return cmd
}

func runLoad(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	names, err := cmd.Flags().GetStringSlice("source")
	if err != nil {
		return fmt.Errorf("failed to get source flag: %w", err)
	}

	factory, err := storage.NewStorageFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer factory.Cleanup()

	cfgs, err := selectSources(ctx, factory.Reader(), names)
	if err != nil {
		return err
	}

	l, err := app.NewLoader(app.WithConfig(cfg))
	if err != nil {
		return err
	}
	report, err := l.Load(ctx, cfgs)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(out)); err != nil {
		return err
	}

	if report.Failed() {
		slog.Error("Load finished with failures", "error", report.Err())
		return errors.New("load finished with failures")
	}
	return nil
}

func selectSources(ctx context.Context, reader store.Reader, names []string) ([]config.SourceConfig, error) {
	if len(names) == 0 {
		cfgs, err := reader.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sources: %w", err)
		}
		return cfgs, nil
	}

	cfgs := make([]config.SourceConfig, 0, len(names))
	for _, name := range names {
		cfg, err := reader.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", name, err)
		}
		cfgs = append(cfgs, *cfg)
	}
	return cfgs, nil
}
