package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/khanglvm/toolgate/internal/log"
	"github.com/khanglvm/toolgate/internal/mcp"
)

// NewServeCmd creates the 'serve' command for running the MCP server.
//
// This is the main command that exposes search_tool, execute_tool and
// server_info via stdio transport.
func NewServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (stdio transport)",
		Long: `Start the toolgate MCP server using stdio transport.

This server exposes 3 tools to clients:
  • search_tool  - Rank operations by natural-language intent
  • execute_tool - Execute an operation by name with parameters
  • server_info  - Catalog size, index health and history stats

The index is built at startup unless settings.index.buildOnStartup is false,
in which case it is built in the background. Child MCP servers are spawned
on demand.`,
		Example: `  # Run directly
  toolgate serve

  # Register with an MCP client
  claude mcp add toolgate -- toolgate serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	return cmd
}

// runServe starts the MCP server with stdio transport and signal handling.
// SIGINT, SIGTERM and SIGQUIT shut it down gracefully.
func runServe(parent context.Context, opts *options) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	gw, cfg, err := opts.openGateway(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := gw.Close(); err != nil {
			log.Errorf("Error during shutdown: %v", err)
		}
	}()

	build := func() {
		report, err := gw.Build(ctx)
		if err != nil {
			log.Errorf("Index build failed: %v", err)
			return
		}
		log.Infof("Index ready: %d operations (%d skipped)", report.Indexed, report.Skipped)
	}
	if cfg.Settings.Index.BuildOnStartup {
		build()
	} else {
		go build()
	}

	server := mcp.NewServer(gw, log.Default)
	err = server.Run(ctx, os.Stdin, os.Stdout)
	switch {
	case errors.Is(err, context.Canceled):
		log.Infof("Shutting down gracefully...")
		return nil
	case err != nil:
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
