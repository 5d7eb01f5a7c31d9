// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/application/container"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/cleanup"
	"github.com/pomeg-dev/nextpress-go/internal/presentation/http/server"
	"github.com/pomeg-dev/nextpress-go/pkg/config"
)

// Initialize performs the complete startup sequence and blocks until a
// shutdown signal arrives.
func Initialize(cfg *config.Config) error {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("\033[32m" + `
  ┌┐┌┌─┐─┐ ┬┌┬┐┌─┐┬─┐┌─┐┌─┐┌─┐
  │││├┤ ┌┴┬┘ │ ├─┘├┬┘├┤ └─┐└─┐
  ┘└┘└─┘┴ └─ ┴ ┴  ┴└─└─┘└─┘└─┘
` + "\033[97m" + `
  headless WordPress router
` + "\033[0m")

	// Step 1: Initialize logging
	log.Println("Initializing logging...")
	logger, err := container.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.Startup().Info("Channeled logging initialized", "level", cfg.LogLevel, "json", cfg.LogJSON)

	// Step 2: Create dependency injection container
	logger.Startup().Info("Initializing dependency injection container...")
	appContainer, err := container.NewContainer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}

	// Step 3: Prepare the content schema
	if cfg.AutoMigrate {
		logger.Startup().Info("Applying content schema...", "seed", cfg.SeedContent)
		if err := appContainer.Migrate(ctx, cfg.SeedContent); err != nil {
			appContainer.Close()
			return fmt.Errorf("failed to migrate content database: %w", err)
		}
	}

	// Step 4: Start background cleanup worker
	logger.Startup().Info("Starting background cleanup worker...")
	startWorkerTime := time.Now()

	cleanupWorker := cleanup.NewWorker(appContainer.RouteCache, appContainer.GateSweeper, logger, cleanup.NewConfig(cfg), os.Stdout)
	go cleanupWorker.Start(ctx)

	logger.Startup().Info("Background cleanup worker started", "duration", time.Since(startWorkerTime))

	// Step 5: Start HTTP server
	httpServer := server.New(appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"address", httpServer.Addr(),
		"cacheBackend", cfg.CacheBackend,
		"frontend", cfg.FrontendURL)

	// Wait for shutdown signal or a listener failure
	select {
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
			cancelBackgroundTasks()
			appContainer.Close()
			return err
		}
	}

	shutdownStart := time.Now()

	// Cancel background tasks
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Closing backends...")
	if err := appContainer.Close(); err != nil {
		logger.Shutdown().Error("Error closing backends", "error", err.Error())
	} else {
		logger.Shutdown().Info("Backends closed successfully")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}
