package cmd

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"taskbridge/internal/tools/task_tools"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP stdio server for AI assistants",
		Long: `Expose the bridge's task operations as MCP tools over stdio. The tools
share the gateway with the HTTP surface, so behavior and error reporting are
identical on both transports.

Like serve, this never starts an interactive sign-in; run 'taskbridge login'
first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			broker, err := buildBroker(cfg, logger, nil, nil)
			if err != nil {
				return err
			}
			gateway, err := buildGateway(cfg, broker, logger, nil)
			if err != nil {
				return err
			}

			mcpSrv := mcpserver.NewMCPServer("taskbridge", version,
				mcpserver.WithToolCapabilities(true),
			)
			if err := task_tools.RegisterTaskTools(mcpSrv, task_tools.Deps{
				Tasks: gateway,
				Auth:  broker,
			}); err != nil {
				return fmt.Errorf("failed to register tools: %w", err)
			}

			logger.Info("starting MCP stdio server")
			return mcpserver.ServeStdio(mcpSrv)
		},
	}
}
