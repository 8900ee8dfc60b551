package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sagarc03/warden"
	"github.com/sagarc03/warden/config"
	"github.com/sagarc03/warden/database"
	"github.com/sagarc03/warden/jsonstore"
	"github.com/sagarc03/warden/keybackend"
	"github.com/sagarc03/warden/session"
)

// services are the pieces every command that touches users needs.
type services struct {
	repo      warden.UserRepo
	sessions  *session.Store
	auth      *warden.AuthService
	privilege *warden.PrivilegeService
	close     func()
}

// openStore opens the configured user store.
func openStore(ctx context.Context, cfg config.StoreConfig) (warden.UserRepo, func(), error) {
	if cfg.Type == "json" {
		store, err := jsonstore.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("opened user store", "type", cfg.Type, "path", cfg.Path)
		return store, func() { _ = store.Close() }, nil
	}

	repo, cleanup, err := database.Open(ctx, cfg.Database())
	if err != nil {
		return nil, nil, err
	}
	slog.Info("connected to user store", "type", cfg.Type, "table", cfg.Table)
	return repo, cleanup, nil
}

func newServices(ctx context.Context, cfg *config.Config) (*services, error) {
	repo, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open user store: %w", err)
	}

	svc, err := assemble(repo, cfg)
	if err != nil {
		closeStore()
		return nil, err
	}
	svc.close = closeStore
	return svc, nil
}

func assemble(repo warden.UserRepo, cfg *config.Config) (*services, error) {
	hasher, err := warden.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("create password hasher: %w", err)
	}

	sessions := session.NewStore(cfg.Session.TTL)

	auth, err := warden.NewAuthService(repo, sessions, warden.AuthConfig{
		PasswordPolicy: cfg.Auth.PasswordPolicy,
		Hasher:         hasher,
	})
	if err != nil {
		return nil, err
	}

	secrets, activeKey, err := keybackend.NewSecretStore(cfg.Privilege.Keys)
	if err != nil {
		return nil, fmt.Errorf("load signing keys: %w", err)
	}

	tokens, err := warden.NewTokenIssuer(secrets, activeKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create token issuer: %w", err)
	}

	privilege, err := warden.NewPrivilegeService(repo, tokens, warden.PrivilegeConfig{TTL: cfg.Privilege.TTL})
	if err != nil {
		return nil, err
	}

	return &services{
		repo:      repo,
		sessions:  sessions,
		auth:      auth,
		privilege: privilege,
	}, nil
}
