package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/toolgate/internal/search"
)

// NewSearchCmd creates the 'search' command.
func NewSearchCmd(opts *options) *cobra.Command {
	var (
		limit      int
		category   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find operations by natural-language intent",
		Example: `  toolgate search "add two numbers"
  toolgate search area --category geometry --limit 3
  toolgate search "standard deviation" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gw, err := opts.openBuilt(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			query := strings.Join(args, " ")
			results, err := gw.Search(ctx, search.Request{Query: query, Limit: limit, Category: category})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			if len(results) == 0 {
				fmt.Fprintf(out, "No operations match %q.\n", query)
				return nil
			}
			fmt.Fprintf(out, "Results for %q:\n\n", query)
			for i, r := range results {
				fmt.Fprintf(out, "%d. %s (%s) score %.3f\n", i+1, r.Name, r.Category, r.Score)
				fmt.Fprintf(out, "   %s\n", r.Description)
				if names := r.Parameters.Names(); len(names) > 0 {
					fmt.Fprintf(out, "   Parameters: %s\n", strings.Join(names, ", "))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default from settings)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only return operations in this category")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}
