package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskbridge/internal/logging"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in once with a device code",
		Long: `Sign in with the Microsoft device-code flow and cache the resulting
credential. Run this once before starting the server; afterwards tokens are
refreshed silently and no further interaction is needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			broker, err := buildBroker(cfg, logger, func(verificationURI, userCode string) {
				fmt.Fprintf(cmd.OutOrStdout(),
					"To sign in, open %s and enter the code %s\n", verificationURI, userCode)
			}, nil)
			if err != nil {
				return err
			}

			tok, err := broker.Token(cmd.Context())
			if err != nil {
				return fmt.Errorf("sign-in failed: %w", err)
			}

			status := broker.Status(cmd.Context())
			logger.Info("signed in",
				logging.Operation("auth.login"),
				logging.Status(logging.StatusSuccess))
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (token valid until %s)\n",
				status.Username, tok.Expiry.Format("2006-01-02 15:04 MST"))
			return nil
		},
	}
}
