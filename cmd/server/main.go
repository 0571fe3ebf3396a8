// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

// Command server runs the BService Suite HTTP service: the analytics and
// profile RPC endpoints, the user lifecycle webhook, and the background
// user sync reconciler.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/analytics"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/api"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/auth"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/config"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/database"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/logging"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/models"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/profile"
	syncpkg "github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/sync"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Err(err).Msg("Failed to close database")
		}
	}()

	jwtManager, err := auth.NewJWTManager(cfg.Security.JWTSecret, 24*time.Hour)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token manager")
	}

	client := syncpkg.NewClient(cfg.Platform.URL, cfg.Site.URL)
	manager := syncpkg.NewManager(db, client, cfg.Site.URL, cfg.Sync.Interval)
	bridge := syncpkg.NewBridge(manager, db, client)

	profileSvc := profile.NewService(db, cfg.Security.AllowDuplicateEmails,
		func(ctx context.Context, ev models.UserLifecycleEvent) {
			if err := bridge.HandleUserEvent(ctx, ev); err != nil {
				logging.Err(err).Int64("user_id", ev.UserID).Msg("Lifecycle event handling failed")
			}
		})
	analyticsSvc := analytics.NewService(db)

	handler := api.NewHandler(db, analyticsSvc, profileSvc, bridge, manager)
	router := api.NewRouter(handler, jwtManager, cfg)

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	if cfg.Sync.Enabled {
		manager.Start()
		defer manager.Stop()
	} else {
		logging.Info().Msg("Background user sync disabled by configuration")
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", server.Addr).
			Str("site_url", cfg.Site.URL).
			Bool("platform_configured", cfg.Platform.URL != "").
			Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		logging.Err(err).Msg("HTTP server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Err(err).Msg("Graceful shutdown failed")
	}
	logging.Info().Msg("Server stopped")
}
