/*
Package cli implements the toolgate command line.

Every command loads ~/.toolgate.json (or --config), applies TOOLGATE_*
environment overrides, and wires a gateway from it. Results go to the
command's output stream; logs go to stderr.
*/
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/khanglvm/toolgate/internal/config"
	"github.com/khanglvm/toolgate/internal/gateway"
	"github.com/khanglvm/toolgate/internal/log"
	"github.com/khanglvm/toolgate/internal/version"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	logLevel   string
}

// NewRootCmd returns the toolgate command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "toolgate",
		Short: "Semantic tool discovery and execution gateway",
		Long: `toolgate indexes a catalog of operations and lets clients find them by
describing what they want to do, then execute them with validated parameters.

The catalog holds the built-in math operations plus the tools of every child
MCP server configured in ~/.toolgate.json. Clients reach it over MCP (stdio)
with 3 tools:
  • search_tool  - Rank operations by natural-language intent
  • execute_tool - Execute an operation with parameters
  • server_info  - Catalog size, index health and history`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetGlobalNormalizationFunc(dashedFlags)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: ~/.toolgate.json)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		NewServeCmd(opts),
		NewIndexCmd(opts),
		NewSearchCmd(opts),
		NewExecCmd(opts),
		NewListCmd(opts),
		NewDescribeCmd(opts),
		NewExportIndexCmd(opts),
		NewConfigCmd(opts),
		NewVersionCmd(),
	)
	return root
}

// dashedFlags lets --log_level stand in for --log-level.
func dashedFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// resolvedConfigPath returns --config or the default path.
func (o *options) resolvedConfigPath() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.GetDefaultConfigPath()
}

// loadConfig loads the configuration and applies the log level.
func (o *options) loadConfig() (*config.Config, error) {
	path, err := o.resolvedConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return nil, err
	}

	level := cfg.Settings.LogLevel
	if o.logLevel != "" {
		if !log.ValidLevel(o.logLevel) {
			return nil, fmt.Errorf("invalid --log-level %q", o.logLevel)
		}
		level = o.logLevel
	}
	log.SetLevel(level)
	return cfg, nil
}

// openGateway loads the configuration and wires a gateway. The caller closes it.
func (o *options) openGateway(ctx context.Context) (*gateway.Gateway, *config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	gw, err := gateway.FromConfig(ctx, cfg, log.Default)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start gateway: %w", err)
	}
	return gw, cfg, nil
}

// openBuilt is openGateway followed by a non-forced build.
func (o *options) openBuilt(ctx context.Context) (*gateway.Gateway, error) {
	gw, _, err := o.openGateway(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := gw.Build(ctx); err != nil {
		gw.Close()
		return nil, fmt.Errorf("failed to build index: %w", err)
	}
	return gw, nil
}
