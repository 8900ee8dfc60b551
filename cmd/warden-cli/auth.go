package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

var passwordFlag string

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create an account",
	Long: `Create an account on the server.

The password is prompted for unless --password is given.

Examples:
  warden-cli register alice
  warden-cli register alice --password 's3cret!Pass'`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and save the session cookie",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether the saved session is still valid",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the saved session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	registerCmd.Flags().StringVar(&passwordFlag, "password", "", "password (prompted when omitted)")
	loginCmd.Flags().StringVar(&passwordFlag, "password", "", "password (prompted when omitted)")

	rootCmd.AddCommand(registerCmd, loginCmd, checkCmd, logoutCmd)
}

func passwordFor() (string, error) {
	if passwordFlag != "" {
		return passwordFlag, nil
	}
	return promptPassword("Password")
}

func runRegister(cmd *cobra.Command, args []string) error {
	password, err := passwordFor()
	if err != nil {
		return cancelledOK(err)
	}

	return run(func(s *session) error {
		res, err := s.client.Register(cmd.Context(), args[0], password)
		if err != nil {
			return handleError(os.Stderr, err)
		}
		return getFormatter().FormatResult(os.Stdout, res)
	})
}

func runLogin(cmd *cobra.Command, args []string) error {
	password, err := passwordFor()
	if err != nil {
		return cancelledOK(err)
	}

	return run(func(s *session) error {
		res, err := s.client.Login(cmd.Context(), args[0], password)
		if err != nil {
			return handleError(os.Stderr, err)
		}
		return getFormatter().FormatResult(os.Stdout, res)
	})
}

func runCheck(cmd *cobra.Command, _ []string) error {
	return run(func(s *session) error {
		res, err := s.client.CheckSession(cmd.Context())
		if err != nil {
			return handleError(os.Stderr, err)
		}
		return getFormatter().FormatResult(os.Stdout, res)
	})
}

func runLogout(cmd *cobra.Command, _ []string) error {
	return run(func(s *session) error {
		res, err := s.client.Logout(cmd.Context())
		if err != nil {
			return handleError(os.Stderr, err)
		}
		return getFormatter().FormatResult(os.Stdout, res)
	})
}

// cancelledOK turns a cancelled prompt into a clean exit.
func cancelledOK(err error) error {
	if errors.Is(err, errCancelled) {
		return nil
	}
	return err
}
