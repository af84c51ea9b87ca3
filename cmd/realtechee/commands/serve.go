package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/realtechee/platform/am"
	"github.com/realtechee/platform/dataapi"
	"github.com/realtechee/platform/db"
	"github.com/realtechee/platform/dispatch"
	"github.com/realtechee/platform/enhance"
	"github.com/realtechee/platform/leads"
	"github.com/realtechee/platform/logger"
	"github.com/realtechee/platform/notify"
	"github.com/realtechee/platform/server"
)

// ServeCmd starts the API server and the background job workers.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and job workers",
	Long: `Start the RealTechee backend in foreground mode.

The server provides:
- Public lead-capture endpoints (rate limited per IP)
- Admin API for quotes, projects, and requests (enhanced with
  resolved contact/property references)
- WebSocket feed of live job updates for the admin dashboard
- Background dispatch workers for notifications and lead intake

Runs until interrupted (Ctrl+C) with graceful shutdown: in-flight
HTTP requests and running jobs are allowed to complete.

Example:
  realtechee serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(database, logger.Logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Data API client for the managed GraphQL backend that owns the
	// business records (contacts, properties, requests, quotes, projects).
	store := dataapi.NewStore(dataapi.New(cfg.DataAPI, logger.Logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Job handlers: notification channels plus lead intake. The worker
	// pool owns the queue; every producer must share pool.GetQueue() so
	// dashboard subscribers see their updates.
	registry := dispatch.NewHandlerRegistry()
	deliveries := notify.NewDeliveryStore(database)
	notify.RegisterHandlers(registry,
		notify.NewSendGridProvider(cfg.Notify.Email, logger.Logger),
		notify.NewTwilioProvider(cfg.Notify.SMS, logger.Logger),
		deliveries,
		logger.Logger)

	pool := dispatch.NewWorkerPoolWithRegistry(ctx, database, cfg, dispatch.PoolConfigFromAm(cfg), logger.Logger, registry)
	queue := pool.GetQueue()

	notifier, err := notify.NewService(cfg.Notify, queue, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to load notification catalog: %w", err)
	}

	enhancer := enhance.NewService(enhance.NewStoreSource(store), cfg.Enhance, logger.Logger)
	leadService := leads.NewService(store, queue, logger.Logger)

	registry.Register(leads.NewIntakeHandler(store, notifier, enhancer, cfg.Server, logger.Logger))

	pool.Start()

	srv := server.New(cfg, server.Deps{
		DB:         database,
		Store:      store,
		Enhancer:   enhancer,
		Notifier:   notifier,
		Leads:      leadService,
		Pool:       pool,
		Queue:      queue,
		Deliveries: deliveries,
	}, logger.Logger)

	// Hot-reload awareness: log config file changes so operators know a
	// restart is needed for settings read at startup.
	if configPath := am.FindProjectConfig(); configPath != "" {
		watcher, err := am.NewConfigWatcher(configPath)
		if err != nil {
			logger.Warnw("Config watcher unavailable", "path", configPath, "error", err)
		} else {
			watcher.OnReload(func(newCfg *am.Config) error {
				logger.Infow("Configuration file changed",
					"path", configPath,
					"note", "most settings take effect on restart")
				return nil
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infow("Shutdown signal received", "signal", sig)
		if err := srv.Stop(); err != nil {
			logger.Errorw("Shutdown error", "error", err)
		}
	}()

	printStartupBanner(cfg.Server.Port, cfg.Database.Path, cfg.Notify.Debug)

	return srv.Start()
}
