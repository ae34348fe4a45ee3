// Package cli implements the docketsync command-line client.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mpavlenko/docketsync/internal/client/api"
	"github.com/mpavlenko/docketsync/internal/client/config"
	"github.com/mpavlenko/docketsync/internal/client/storage"
	clientsync "github.com/mpavlenko/docketsync/internal/client/sync"
	"github.com/mpavlenko/docketsync/internal/logging"
)

// App carries the dependencies shared by all commands.
type App struct {
	cfg  *config.Config
	db   *storage.DB
	api  api.Client
	orch *clientsync.Orchestrator
	log  logging.Logger

	in  io.Reader
	out io.Writer
}

func NewApp(cfg *config.Config, db *storage.DB, apiClient api.Client, log logging.Logger) *App {
	return &App{
		cfg:  cfg,
		db:   db,
		api:  apiClient,
		orch: clientsync.New(db, apiClient, cfg.EncryptionEnabled, log),
		log:  log,
		in:   os.Stdin,
		out:  os.Stdout,
	}
}

// RootCmd builds the command tree.
func (a *App) RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docketsync",
		Short:         "Offline-first court case tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		a.registerCmd(),
		a.loginCmd(),
		a.caseCmd(),
		a.dateCmd(),
		a.syncCmd(),
		a.statusCmd(),
		a.pingCmd(),
	)
	return root
}

// Execute is the client entry point: it loads configuration, opens the local
// database, and runs the command tree until completion or SIGINT/SIGTERM.
func Execute() error {
	cfg := config.LoadConfig()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening local database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrating local database: %w", err)
	}

	app := NewApp(cfg, db, api.NewHTTPClient(cfg.ServerEndpointAddr, cfg.RequestTimeout, log), log)
	return app.RootCmd().ExecuteContext(ctx)
}
