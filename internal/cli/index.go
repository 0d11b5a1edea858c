package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khanglvm/toolgate/internal/config"
	"github.com/khanglvm/toolgate/internal/gateway"
)

// NewIndexCmd creates the 'index' command that builds the vector index.
func NewIndexCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the search index",
		Long: `Embed every operation in the catalog and store the vectors.

With the sqlite store the index persists between runs and a later build only
refreshes it; --force discards it and embeds everything again. Only one build
may write the store at a time.`,
		Example: `  toolgate index
  toolgate index --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gw, cfg, err := opts.openGateway(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			if cfg.Settings.Store.Driver == config.DriverSQLite {
				path := cfg.Settings.Store.Path
				if path == "" {
					path = gateway.DefaultIndexPath()
				}
				lock, err := acquireFileLock(path)
				if err != nil {
					return fmt.Errorf("failed to acquire file lock: %w", err)
				}
				defer releaseFileLock(lock)
			}

			build := gw.Build
			if force {
				build = gw.Rebuild
			}
			report, err := build(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if report.FastPath {
				fmt.Fprintf(out, "✓ Index already holds %d operations (use --force to rebuild)\n", report.Indexed)
			} else {
				fmt.Fprintf(out, "✓ Indexed %d operations\n", report.Indexed)
			}
			if report.Skipped > 0 {
				fmt.Fprintf(out, "  Skipped %d:\n", report.Skipped)
				for _, s := range report.Skips {
					fmt.Fprintf(out, "    • %s: %s\n", s.Name, s.Reason)
				}
			}
			if cfg.Settings.Store.Driver == config.DriverMemory {
				fmt.Fprintln(out, "  Note: the memory store is not persisted; set settings.store.driver to \"sqlite\" to keep the index.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Discard the existing index and embed everything again")

	return cmd
}
