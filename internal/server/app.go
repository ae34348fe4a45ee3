// Package server assembles the docketsync server: configuration, storage,
// services, and the HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mpavlenko/docketsync/internal/logging"
	"github.com/mpavlenko/docketsync/internal/server/config"
	"github.com/mpavlenko/docketsync/internal/server/httpapi"
	"github.com/mpavlenko/docketsync/internal/server/repositories/repomanager"
	"github.com/mpavlenko/docketsync/internal/server/services"
	"github.com/mpavlenko/docketsync/internal/vault"
)

// Run wires the server together and serves until SIGINT/SIGTERM.
func Run() error {
	_ = godotenv.Load()

	cfg := config.LoadConfig()
	log := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := newManager(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.Error(ctx, "closing storage", "error", err)
		}
	}()

	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	keyring := vault.NewKeyring()
	quota := services.NewQuotaGuard(manager, cfg.MaxCasesPerOwner, cfg.MaxDatesPerCase)

	srv := httpapi.NewServer(cfg,
		services.NewUserService(manager, cfg.SecretKey, cfg.AccessTokenValidityDuration, log),
		services.NewKeyService(manager, keyring),
		services.NewSyncService(manager, quota, keyring, cfg, log),
		log)

	return srv.Run(ctx)
}

func newManager(ctx context.Context, cfg *config.Config, log logging.Logger) (repomanager.Manager, error) {
	if cfg.DatabaseDSN == "" {
		log.Warn(ctx, "no database DSN configured, falling back to in-memory storage")
		return repomanager.NewMemoryManager(), nil
	}
	m, err := repomanager.NewPostgresManager(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return m, nil
}
