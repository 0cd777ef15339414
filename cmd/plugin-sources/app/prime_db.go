package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/flowcraft/plugin-sources/internal/store"
)

func newPrimeDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prime-db",
		Short: "Seed the database with the sources of the configuration file",
		Long: `Prime the database by upserting every source of the configuration file into the
package_sources table. Object storage secret keys must be sealed; sources using
secretKeyFile are rejected because the plain key cannot be stored.

The schema must exist, run 'plugin-sources migrate up' first.`,
		RunE: runPrimeDB,
	}
	addConfigFlag(cmd)
	cmd.Flags().Bool("dry-run", false, "Print the sources that would be written to standard output")
	return cmd
}

func runPrimeDB(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return fmt.Errorf("failed to get dry-run flag: %w", err)
	}

	if dryRun {
		for _, src := range cfg.Sources {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d packages\n", src.Name, src.GetType(), len(src.Packages))
		}
		return nil
	}

	if cfg.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	db, err := store.NewDBStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	for i := range cfg.Sources {
		if err := db.Upsert(ctx, &cfg.Sources[i]); err != nil {
			return fmt.Errorf("failed to store source %s: %w", cfg.Sources[i].Name, err)
		}
	}
	slog.Info("Database primed successfully", "sources", len(cfg.Sources))
	return nil
}
