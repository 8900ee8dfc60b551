package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/warden"
	"github.com/sagarc03/warden/config"
	"github.com/sagarc03/warden/filesystem"
	wardenhttp "github.com/sagarc03/warden/http"
	"github.com/sagarc03/warden/server"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve [port]",
	Short: "Start the protocol server",
	Long: `Start the warden protocol server.

A positional port overrides server.port from the config file,
environment and flags.

Examples:
  # Listen on the configured port (default 8080)
  warden serve

  # Listen on port 9000 with the admin API enabled
  warden serve 9000 --admin`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "interface to listen on (default: all)")
	serveCmd.Flags().Int("port", 8080, "protocol server port")
	serveCmd.Flags().String("content-root", "", "image directory (default: ./images)")
	serveCmd.Flags().Bool("admin", false, "enable the admin API")
	serveCmd.Flags().Int("admin-port", 5710, "admin API port")

	rootCmd.AddCommand(serveCmd)
}

// parsePort parses a positional port argument.
func parsePort(arg string) (int, error) {
	port, err := strconv.Atoi(arg)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q: must be a number between 1 and 65535", arg)
	}
	return port, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	if len(args) == 1 {
		port, parseErr := parsePort(args[0])
		if parseErr != nil {
			_ = cmd.Usage()
			return parseErr
		}
		cfg.Server.Port = port
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	if err = os.MkdirAll(cfg.Content.Root, 0o750); err != nil {
		return fmt.Errorf("create content root: %w", err)
	}

	root, err := os.OpenRoot(cfg.Content.Root)
	if err != nil {
		return fmt.Errorf("open content root: %w", err)
	}
	defer func() { _ = root.Close() }()

	content, err := warden.NewContentService(filesystem.NewFileStorage(root), svc.privilege, warden.ContentConfig{
		RequirePrivilege: cfg.Content.RequirePrivilege,
		MaxFileBytes:     cfg.Content.MaxFileBytes,
	})
	if err != nil {
		return fmt.Errorf("create content service: %w", err)
	}

	go svc.sessions.Run(ctx, cfg.Session.SweepInterval)

	handler := server.NewHandler(svc.auth, svc.privilege, content)
	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr(),
		MaxConnections: cfg.Server.MaxConnections,
		IdleTimeout:    cfg.Server.IdleTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	}, handler.Router())

	var admin *http.Server
	if cfg.Admin.Enabled {
		admin = newAdminServer(cfg, srv, svc)
	}

	errCh := make(chan error, 2)

	go func() {
		slog.Info("starting server",
			"addr", cfg.Server.Addr(),
			"store", cfg.Store.Type,
			"max_connections", cfg.Server.MaxConnections,
			"require_privilege", cfg.Content.RequirePrivilege,
		)
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, server.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", serveErr)
		}
	}()

	if admin != nil {
		go func() {
			slog.Info("starting admin api", "addr", admin.Addr)
			if serveErr := admin.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				errCh <- fmt.Errorf("admin server error: %w", serveErr)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down server...")
	case runErr = <-errCh:
		slog.Error("server stopped", "err", runErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "err", err)
	}
	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			slog.Error("admin shutdown error", "err", err)
		}
	}

	return runErr
}

func newAdminServer(cfg *config.Config, srv *server.Server, svc *services) *http.Server {
	handler := wardenhttp.NewHandler(&wardenhttp.HandlerConfig{CORS: cfg.Admin.CORS}, wardenhttp.Sources{
		Connections: srv,
		Sessions:    svc.sessions,
		Users:       svc.repo,
		Routes:      srv.Router(),
	})

	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Admin.Port)),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
