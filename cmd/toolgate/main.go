/*
Package main is the entry point for the toolgate CLI.

toolgate is a semantic tool-discovery and execution gateway: it indexes a
catalog of operations, ranks them against natural-language queries, and
executes them with validated parameters.

Usage:
  toolgate [command]

Available Commands:
  serve         Run the MCP server (stdio transport)
  index         Build the search index
  search        Find operations by natural-language intent
  exec          Execute an operation
  list          List catalog operations
  describe      Show catalog, index and history status
  export-index  Export the operation index for grep/jq search
  config        Manage the configuration file
  version       Show version information

Examples:
  # Run as MCP server
  toolgate serve

  # Find and run an operation
  toolgate search "add two numbers"
  toolgate exec add --params '{"a": 5, "b": 3}'
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/khanglvm/toolgate/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, cli.ErrExecutionFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
