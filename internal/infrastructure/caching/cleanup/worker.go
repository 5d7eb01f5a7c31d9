// Package cleanup provides background worker
package cleanup

import (
	"context"
	"io"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/interfaces"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/manager"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
)

// GateSweeper is implemented by debounce gates holding expiring windows in
// process memory.
type GateSweeper interface {
	Sweep() int
	Len() int
}

// Worker purges expired route entries and debounce windows on an interval.
// Backends that expire keys themselves (Redis) are skipped.
type Worker struct {
	cache    *manager.Manager
	gate     GateSweeper
	logger   *logging.ChanneledLogger
	config   *Config
	reporter *Reporter
}

// NewWorker creates a cleanup worker. gate may be nil.
func NewWorker(cache *manager.Manager, gate GateSweeper, logger *logging.ChanneledLogger, config *Config, out io.Writer) *Worker {
	return &Worker{
		cache:    cache,
		gate:     gate,
		logger:   logger,
		config:   config,
		reporter: NewReporter(out),
	}
}

// Start runs the cleanup loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	w.logger.Cache().Info("Cache cleanup worker started",
		"interval", w.config.CleanupInterval,
		"verbose", w.config.VerboseReporting)

	for {
		select {
		case <-ctx.Done():
			w.logger.Cache().Info("Cache cleanup worker stopping")
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce performs a single cleanup pass and returns the number of entries
// and windows removed.
func (w *Worker) RunOnce() int {
	start := time.Now()

	if w.config.VerboseReporting {
		w.reporter.LogStage("PERIODIC CACHE CLEANUP")
		openWindows := 0
		if w.gate != nil {
			openWindows = w.gate.Len()
		}
		if _, err := io.WriteString(w.reporter.out, w.reporter.GenerateCacheReport(w.cache.Stats(), openWindows)); err != nil {
			w.logger.Cache().Warn("Failed to write cache report", "error", err.Error())
		}
	}

	var entries, windows int
	if sweeper, ok := w.cache.Backend().(interfaces.Sweeper); ok {
		entries = sweeper.PurgeExpired()
	} else if w.config.VerboseReporting {
		w.reporter.LogWarning("%s backend expires entries itself, skipping purge", w.cache.Backend().Name())
	}
	if w.gate != nil {
		windows = w.gate.Sweep()
	}

	total := entries + windows
	duration := time.Since(start)
	if total > 0 {
		w.reporter.LogSuccess("Cache cleanup finished: %d entries and %d debounce windows cleaned in %v",
			entries, windows, duration)
		w.logger.Cache().Info("Cache cleanup finished", "entries", entries, "windows", windows, "duration", duration)
	} else if w.config.VerboseReporting {
		w.reporter.LogInfo("Cache cleanup completed - no expired items found (%v)", duration)
	}
	return total
}
