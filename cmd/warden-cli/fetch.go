package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/warden/client"
)

var (
	fetchOutput string
	fetchStdout bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url> [local-path]",
	Short: "Download an image",
	Long: `Download an image from the server's content root.

When the server requires privilege, run 'warden-cli upgrade' first; the
saved key cookie is sent with the request.

Examples:
  warden-cli fetch cats/cat.png
  warden-cli fetch cats/cat.png ./cat.png
  warden-cli fetch --stdout cats/cat.png > cat.png`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "output file path")
	fetchCmd.Flags().BoolVar(&fetchStdout, "stdout", false, "write to stdout")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	opts := client.FetchOptions{URL: args[0]}
	if len(args) > 1 {
		opts.LocalPath = args[1]
	}
	if fetchOutput != "" {
		opts.LocalPath = fetchOutput
	}
	if fetchStdout {
		opts.LocalPath = "-"
	}

	return run(func(s *session) error {
		result, err := s.client.Fetch(cmd.Context(), opts, os.Stdout)
		if err != nil {
			return handleError(os.Stderr, err)
		}

		// Image bytes own stdout; metadata goes to stderr in that case.
		if result.LocalPath == "-" {
			if jsonOutput {
				return getFormatter().FormatFetch(os.Stderr, result)
			}
			return nil
		}
		return getFormatter().FormatFetch(os.Stdout, result)
	})
}
