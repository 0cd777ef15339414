package app

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/flowcraft/plugin-sources/internal/app/storage"
	"github.com/flowcraft/plugin-sources/internal/service"
	"github.com/flowcraft/plugin-sources/internal/sources"
)

func newSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect the configured sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the configured sources with their masked details",
		RunE:  runSourcesList,
	}
	addConfigFlag(list)
	list.Flags().String("format", "table", "Output format (table, json)")

	cmd.AddCommand(list)
	return cmd
}

func runSourcesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}

	factory, err := storage.NewStorageFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer factory.Cleanup()

	// Listing never imports, so no loader is wired
	svc := service.New(factory.Reader(), sources.DefaultRegistry(), nil)
	views, err := svc.ListSources(ctx)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		out, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode sources: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	case "table":
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Name", "Type", "Packages", "Error")
		for _, v := range views {
			if err := table.Append(v.Name, v.Type, strconv.Itoa(len(v.Packages)), v.Error); err != nil {
				return fmt.Errorf("failed to render sources: %w", err)
			}
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
