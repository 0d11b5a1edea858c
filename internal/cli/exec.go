package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/toolgate/internal/execute"
)

// ErrExecutionFailed is returned by exec after a failed result has been printed.
var ErrExecutionFailed = errors.New("execution failed")

// NewExecCmd creates the 'exec' command.
func NewExecCmd(opts *options) *cobra.Command {
	var (
		params  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "exec <operation>",
		Short: "Execute an operation",
		Long: `Execute one operation with parameters given as a JSON object.

The result is printed as JSON. A failed execution prints the structured
error and exits non-zero.`,
		Example: `  toolgate exec add --params '{"a": 5, "b": 3}'
  toolgate exec mean --params '{"data": [1, 2, 3, 4]}'
  toolgate exec myserver.slow_tool --timeout 2m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := parseParams(params)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			gw, _, err := opts.openGateway(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			res := gw.Execute(ctx, execute.Request{
				Operation:  args[0],
				Parameters: parameters,
				Timeout:    timeout,
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.Success {
				return ErrExecutionFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&params, "params", "p", "{}", "Parameters as a JSON object")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Execution timeout (default from settings)")

	return cmd
}

// parseParams decodes a JSON object of parameters.
func parseParams(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("invalid --params: must be a JSON object: %w", err)
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}
