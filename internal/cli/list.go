package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// NewListCmd creates the 'list' command for listing catalog operations.
func NewListCmd(opts *options) *cobra.Command {
	var (
		jsonOutput bool
		category   string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List catalog operations",
		Long:    `Display every operation in the catalog, grouped by category.`,
		Example: `  toolgate list
  toolgate ls --category statistics
  toolgate list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gw, _, err := opts.openGateway(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			ops, err := gw.Operations(ctx, category)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ops)
			}

			if len(ops) == 0 {
				fmt.Fprintln(out, "No operations found.")
				return nil
			}

			byCategory := make(map[string][]int)
			var order []string
			for i, op := range ops {
				if _, ok := byCategory[op.Category]; !ok {
					order = append(order, op.Category)
				}
				byCategory[op.Category] = append(byCategory[op.Category], i)
			}
			sort.Strings(order)

			fmt.Fprintf(out, "Operations (%d):\n", len(ops))
			for _, cat := range order {
				fmt.Fprintf(out, "\n  %s\n", cat)
				for _, i := range byCategory[cat] {
					op := ops[i]
					fmt.Fprintf(out, "    %-24s %s\n", op.Name, op.Description)
					if names := op.Parameters.Names(); len(names) > 0 {
						fmt.Fprintf(out, "    %-24s (%s)\n", "", strings.Join(names, ", "))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only list operations in this category")

	return cmd
}
