package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cached credential state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			broker, err := buildBroker(cfg, logger, nil, nil)
			if err != nil {
				return err
			}

			status := broker.Status(cmd.Context())
			if asJSON {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			if !status.Authenticated {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in. Run 'taskbridge login' to sign in.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", status.Username)
			if status.TokenExpiry != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Access token valid until %s\n", status.TokenExpiry)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}
