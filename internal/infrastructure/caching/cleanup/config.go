package cleanup

import (
	"time"

	"github.com/pomeg-dev/nextpress-go/pkg/config"
)

// Config holds cleanup worker configuration, sourced from the service config.
type Config struct {
	CleanupInterval  time.Duration
	VerboseReporting bool
}

// NewConfig reads the cleanup settings from the loaded configuration.
func NewConfig(cfg *config.Config) *Config {
	return &Config{
		CleanupInterval:  cfg.CacheCleanupInterval,
		VerboseReporting: cfg.CacheCleanupVerbose,
	}
}
