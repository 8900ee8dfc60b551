package main

import (
	"os"

	"github.com/spf13/cobra"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <username>",
	Short: "Request a time-boxed privilege key",
	Long: `Request a privilege key for a user. The server answers with a key
cookie that is saved to the profile and sent with later fetches.

Upgrading again while the key is still active is refused with 409.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpgrade,
}

var authorizedCmd = &cobra.Command{
	Use:   "authorized <username>",
	Short: "Check whether a user holds an active privilege key",
	Long: `Check whether a user holds an active privilege key.

Exits with status 1 when the user is not authorized.`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthorized,
}

func init() {
	rootCmd.AddCommand(upgradeCmd, authorizedCmd)
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	return run(func(s *session) error {
		res, err := s.client.Upgrade(cmd.Context(), args[0])
		if err != nil {
			return handleError(os.Stderr, err)
		}
		return getFormatter().FormatResult(os.Stdout, res)
	})
}

func runAuthorized(cmd *cobra.Command, args []string) error {
	return run(func(s *session) error {
		ok, err := s.client.Authorized(cmd.Context(), args[0])
		if err != nil {
			return handleError(os.Stderr, err)
		}
		if err := getFormatter().FormatAuthorized(os.Stdout, args[0], ok); err != nil {
			return err
		}
		if !ok {
			return errReported
		}
		return nil
	})
}
