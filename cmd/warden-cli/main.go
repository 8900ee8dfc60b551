package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/warden/client"
)

var (
	version = "dev"

	cfgFile     string
	profileName string
	address     string
	jsonOutput  bool
	quiet       bool
)

var rootCmd = &cobra.Command{
	Use:     "warden-cli",
	Version: version,
	Short:   "Client for warden servers",
	Long: `warden-cli talks to a warden server.

Session and privilege cookies returned by the server are saved in the
active profile, so a login in one invocation is reused by the next:

  warden-cli register alice
  warden-cli login alice
  warden-cli check
  warden-cli upgrade alice
  warden-cli fetch cats/cat.png`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.warden/config.yaml, env: WARDEN_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "profile name (default: the default profile, env: WARDEN_PROFILE)")
	rootCmd.PersistentFlags().StringVarP(&address, "address", "a", "", "server host:port (default: localhost:8080, env: WARDEN_ADDRESS)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(configureCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			_ = getFormatter().FormatError(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// errReported marks an error that has already been printed.
var errReported = errors.New("error reported")

// handleError prints err and returns a marker so main only sets the exit code.
func handleError(w io.Writer, err error) error {
	_ = getFormatter().FormatError(w, err)
	return fmt.Errorf("%w: %w", errReported, err)
}

// getConfigPath resolves the profile file path from the flag, env, or default.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := client.ConfigPathFromEnv(); p != "" {
		return p
	}
	return client.DefaultConfigPath()
}

// getProfileName resolves the profile name from the flag or env.
func getProfileName() string {
	if profileName != "" {
		return profileName
	}
	return client.ProfileFromEnv()
}

// getFormatter returns the appropriate formatter based on flags.
func getFormatter() client.Formatter {
	return client.NewFormatter(jsonOutput, quiet)
}
