package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the taskbridge application
var rootCmd = &cobra.Command{
	Use:   "taskbridge",
	Short: "Bridges an AI assistant to one user's Microsoft To Do",
	Long: `taskbridge lets an AI assistant create, list and complete tasks in a
single pre-authorized user's Microsoft To Do account, and relays qualifying
task changes to a downstream calendar receiver exactly once.

It can run as:
  - An HTTP bridge for assistant callers and inbound webhooks (serve)
  - An MCP (Model Context Protocol) stdio server for AI assistants (mcp)`,
	SilenceUsage: true,
}

// Persistent flags shared by every command.
var (
	configFile string
	debugFlag  bool
	logFormat  string
)

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "taskbridge version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newVersionCmd())
}
