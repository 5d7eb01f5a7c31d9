package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pomeg-dev/nextpress-go/internal/application/container"
	"github.com/pomeg-dev/nextpress-go/internal/application/startup"
	"github.com/pomeg-dev/nextpress-go/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nextpress-go",
		Short: "Path router and cache invalidation service for a headless WordPress frontend",
		Long: `nextpress-go resolves frontend URL paths to WordPress content, caches the
formatted payloads and keeps the cache and the Next.js frontend fresh as
content changes.

Configuration is read from flags, then the environment, then the file given
with --config (or .env in the working directory).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (.env or YAML)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("cache-backend", config.CacheBackendMemory, "route cache backend (memory, redis, bolt)")
	rootCmd.PersistentFlags().String("sqlite-path", "data/nextpress.db", "SQLite content database path")

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newResolveCmd(),
		newInvalidateCmd(),
		newTokenCmd(),
	)
	return rootCmd
}

func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	return config.Load(cfgFile, flags)
}

// withContainer runs fn against a fully wired container and closes it after.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *container.Container) error) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := container.NewLogger(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := container.NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
	cmd.Flags().String("port", "8080", "HTTP listen port")
	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	return startup.Initialize(cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
