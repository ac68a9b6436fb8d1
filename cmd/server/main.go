// Package main is the entry point for the Folio portfolio tracker API server.
//
// Startup order:
// 1. Load configuration from environment variables (.env supported)
// 2. Initialize logging
// 3. Wire dependencies (databases, repositories, services, listeners, jobs)
// 4. Bootstrap the administrator account when configured
// 5. Start the scheduler and the HTTP server
// 6. Wait for a shutdown signal, then stop cron, the websocket hub, and the HTTP server
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/di"
	"github.com/aristath/folio/internal/server"
	"github.com/aristath/folio/pkg/logger"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	log.Info().Str("version", cfg.Version).Str("data_dir", cfg.DataDir).Msg("Starting Folio")
	if cfg.GeneratedSecret {
		log.Warn().Msg("FOLIO_JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	container, _, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	if cfg.AdminEmail != "" {
		if _, created, err := container.UserService.EnsureAdmin(cfg.AdminEmail, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			log.Error().Err(err).Msg("Failed to bootstrap administrator")
		} else if created {
			log.Info().Str("email", cfg.AdminEmail).Msg("Administrator account created")
		}
	}

	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server...")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	// Stop cron first so no job starts against closing databases; this waits for running jobs.
	container.Scheduler.Stop()

	// Closing the hub ends websocket streams so the HTTP shutdown is not held open by them.
	container.Hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
