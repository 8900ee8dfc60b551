package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/warden/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "warden",
	Short:   "Login, privilege and image server",
	Long: `Warden serves user registration, cookie sessions, time-boxed
privilege keys and image downloads over a small HTTP-shaped protocol.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg.Env, cfg.Log.Level)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringSlice("config", nil, "config file path(s), later files override earlier ones (default: ./config.yaml)")
	flags.String("store-type", "", "user store type: json, sqlite, postgres (env: WARDEN_STORE_TYPE)")
	flags.String("store-path", "", "json user store file (env: WARDEN_STORE_PATH)")
	flags.String("store-dsn", "", "sqlite or postgres connection string (env: WARDEN_STORE_DSN)")
	flags.String("log-level", "", "log level: debug, info, warn, error (env: WARDEN_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
