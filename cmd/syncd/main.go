package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/infrastructure/config"
	"github.com/aiborg-ai/appboardguru-sub011/infrastructure/di"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, err := di.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	logger := container.Logger

	// Start the sync engine. The transport dials in the background and
	// keeps retrying, so a down server does not abort startup.
	if err := container.Engine.Start(ctx); err != nil {
		logger.Fatal("Failed to start sync engine", zap.Error(err))
	}

	// Hot reload in development: indicator lifetimes take effect on the
	// next sweep, everything else applies on the next start.
	watcher, err := config.NewWatcher(config.Path(), cfg, logger)
	if err != nil {
		logger.Warn("Config watcher unavailable", zap.Error(err))
	} else {
		watcher.OnChange(func(next *config.Config) {
			container.Tracker.UpdateTTLs(
				time.Duration(next.Presence.TypingTTL),
				time.Duration(next.Presence.PresenceTTL),
			)
		})
		defer watcher.Stop()
	}

	// Ops HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      container.Handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting ops server",
			zap.String("address", cfg.Server.Address),
			zap.String("environment", string(cfg.Environment)),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Ops server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown: ops surface first, then the engine, then the
	// container's resources.
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ops server shutdown error", zap.Error(err))
	}

	if err := container.Engine.Stop(); err != nil {
		logger.Error("Engine stop error", zap.Error(err))
	}

	if err := container.Shutdown(shutdownCtx); err != nil {
		logger.Error("Container shutdown error", zap.Error(err))
	}

	if err := logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Sync core stopped")
}
