package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// NewDescribeCmd creates the 'describe' command.
func NewDescribeCmd(opts *options) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Show catalog, index and history status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gw, err := opts.openBuilt(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			d, err := gw.Describe(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}

			status := "✓ healthy"
			if !d.Health.Healthy {
				status = "✗ unhealthy"
				if d.Health.Error != "" {
					status += ": " + d.Health.Error
				}
			}
			fmt.Fprintf(out, "toolgate %s\n\n", d.Version)
			fmt.Fprintf(out, "Status:     %s\n", status)
			fmt.Fprintf(out, "Catalog:    %d operations\n", d.CatalogSize)
			fmt.Fprintf(out, "Indexed:    %d (%d skipped)\n", d.IndexedCount, d.Skipped)
			fmt.Fprintf(out, "Embedder:   %s (%d dimensions)\n", d.Embedder.Model, d.Embedder.Dimensions)

			fmt.Fprintln(out, "\nCategories:")
			for _, c := range d.Categories {
				fmt.Fprintf(out, "  %-16s %d\n", c.Name, c.Count)
			}

			if len(d.Health.FailedProviders) > 0 {
				names := make([]string, 0, len(d.Health.FailedProviders))
				for name := range d.Health.FailedProviders {
					names = append(names, name)
				}
				sort.Strings(names)
				fmt.Fprintln(out, "\nUnavailable servers:")
				for _, name := range names {
					fmt.Fprintf(out, "  ✗ %s: %s\n", name, d.Health.FailedProviders[name])
				}
			}

			if h := d.History; h != nil {
				fmt.Fprintln(out, "\nHistory (last 30 days):")
				fmt.Fprintf(out, "  Searches:   %d\n", h.Searches)
				fmt.Fprintf(out, "  Executions: %d (%d failed)\n", h.Executions, h.Failures)
				for _, op := range h.TopOperations {
					fmt.Fprintf(out, "    %-22s %d\n", op.Operation, op.Count)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}
