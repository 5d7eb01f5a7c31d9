// Package container builds and owns every long-lived dependency of the
// service.
package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/application/services"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/cleanup"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/interfaces"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/manager"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/stores"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/messaging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/metrics"
	sqlcontent "github.com/pomeg-dev/nextpress-go/internal/infrastructure/persistence/content"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/persistence/database"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/revalidation"
	"github.com/pomeg-dev/nextpress-go/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Container holds the singletons wired at startup.
type Container struct {
	Config  *config.Config
	Logger  *logging.ChanneledLogger
	Metrics *metrics.Registry

	// Persistence
	DB    *database.DB
	Store *sqlcontent.SQLContentStore

	// Caching
	CacheBackend interfaces.Backend
	RouteCache   *manager.Manager
	Gate         caching.DebounceGate
	GateSweeper  cleanup.GateSweeper

	// Outbound
	Revalidator *revalidation.Client
	Broadcaster *messaging.Broadcaster

	// Application services
	TagRegistry          *services.TagRegistry
	ResolverService      *services.ResolverService
	FormatterService     *services.FormatterService
	RouterService        *services.RouterService
	ListingService       *services.ListingService
	InvalidationService  *services.InvalidationService
	SettingsInvalidation *services.SettingsInvalidation

	gateClient *redis.Client
}

// NewLogger builds the channeled logger described by cfg.
func NewLogger(cfg *config.Config) (*logging.ChanneledLogger, error) {
	loggerConfig := logging.DefaultLoggerConfig()
	loggerConfig.DefaultLevel = logging.ParseLevel(cfg.LogLevel)
	loggerConfig.JSONFormat = cfg.LogJSON
	loggerConfig.OutputToFile = cfg.LogToFile
	loggerConfig.LogDirectory = cfg.LogDir
	return logging.NewChanneledLogger(loggerConfig)
}

// NewContainer opens the content database and cache backend and wires the
// services. The store's mutation hooks are bound to the invalidation
// engine, so every write through Store invalidates what it affects.
func NewContainer(ctx context.Context, cfg *config.Config, logger *logging.ChanneledLogger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewRegistry(),
	}

	db, err := database.Open(ctx, database.ConfigFrom(cfg), logger)
	if err != nil {
		return nil, err
	}
	c.DB = db
	c.Store = sqlcontent.NewSQLContentStore(db.DB, logger, cfg.SlowQueryThreshold)

	if err := c.initCache(); err != nil {
		c.Close()
		return nil, err
	}

	c.Revalidator = revalidation.NewClient(revalidation.Config{
		BaseURL:     cfg.FrontendURL,
		Timeout:     cfg.RevalidateTimeout,
		Concurrency: cfg.RevalidateConcurrency,
	}, logger, c.Metrics)
	if !c.Revalidator.Enabled() {
		logger.Startup().Warn("FRONTEND_URL is not set, frontend revalidation is disabled")
	}
	c.Broadcaster = messaging.NewBroadcaster(logger, cfg.CORSOrigins)

	c.TagRegistry = services.NewTagRegistry(c.CacheBackend, c.RouteCache.Keys(), cfg.TagRegistryTTL)
	c.ResolverService = services.NewResolverService(c.Store, logger, c.Metrics)
	c.FormatterService = services.NewFormatterService(c.Store, logger, cfg.WordPressURL,
		services.RedactProtectedContent,
		services.RewriteWordPressPaths(cfg.WordPressURL))
	c.RouterService = services.NewRouterService(c.ResolverService, c.FormatterService, c.RouteCache, c.TagRegistry,
		logger, c.Metrics, cfg.CacheDrafts())
	c.ListingService = services.NewListingService(c.Store, c.FormatterService, c.TagRegistry, logger,
		cfg.WordPressURL, cfg.PostsPerPage)
	c.InvalidationService = services.NewInvalidationService(c.Store, c.RouteCache, c.Gate, c.Revalidator, c.TagRegistry,
		c.Broadcaster, logger, c.Metrics, services.InvalidationOptions{
			SnapshotTTL: cfg.SnapshotTTL,
			TypeTags:    cfg.RevalidateTypeTags,
		})
	c.SettingsInvalidation = services.NewSettingsInvalidation(c.RouteCache, c.Revalidator, c.Broadcaster, logger, c.Metrics)

	c.Store.SetHooks(c.InvalidationService.Hooks(c.SettingsInvalidation))

	logger.Startup().Info("Container initialized",
		"database", db.GetConnectionInfo(),
		"pool", db.PoolInfo(),
		"cacheBackend", c.CacheBackend.Name(),
		"debounceBackend", cfg.DebounceBackend,
		"debounceWindow", cfg.DebounceWindow)
	return c, nil
}

func (c *Container) initCache() error {
	cfg := c.Config

	keys := caching.NewKeyBuilder(cfg.CacheNamespace)

	// CacheBackend is only assigned once the backend is open.
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		store, err := stores.NewRedisStore(cfg.RedisURL, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to open %s cache backend: %w", cfg.CacheBackend, err)
		}
		c.CacheBackend = store.WithPrefixIndex(keys.RoutePrefix())
	case config.CacheBackendBolt:
		store, err := stores.NewBoltStore(cfg.BoltPath)
		if err != nil {
			return fmt.Errorf("failed to open %s cache backend: %w", cfg.CacheBackend, err)
		}
		c.CacheBackend = store
	default:
		c.CacheBackend = stores.NewMemoryStore()
	}

	var err error
	c.RouteCache, err = manager.NewManager(c.CacheBackend, keys, manager.Config{
		ContentTTL:  cfg.RouterCacheTTL,
		NotFoundTTL: cfg.NotFoundCacheTTL,
	}, c.Logger, c.Metrics)
	if err != nil {
		return err
	}

	if cfg.DebounceBackend != config.CacheBackendRedis {
		gate := caching.NewMemoryGate(cfg.DebounceWindow)
		c.Gate = gate
		c.GateSweeper = gate
		return nil
	}

	client, err := c.redisClient()
	if err != nil {
		return err
	}
	c.Gate = caching.NewRedisGate(client, keys, cfg.DebounceWindow)
	return nil
}

// redisClient reuses the cache backend's connection pool when the cache is
// on Redis too.
func (c *Container) redisClient() (*redis.Client, error) {
	if store, ok := c.CacheBackend.(*stores.RedisStore); ok {
		return store.Client(), nil
	}

	opts, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis debounce gate: %w", err)
	}
	c.gateClient = client
	return client, nil
}

// Migrate creates the schema and optionally seeds starter content.
func (c *Container) Migrate(ctx context.Context, seed bool) error {
	start := time.Now()
	creator := database.NewTableCreator()
	if err := creator.CreateSchema(ctx, c.DB.DB); err != nil {
		return err
	}
	if seed {
		if err := creator.SeedInitialContent(ctx, c.DB.DB); err != nil {
			return err
		}
	}
	c.Logger.LogStartupPhase("migrate", time.Since(start), true, map[string]any{"seed": seed})
	return nil
}

// Close releases every backend in reverse order of creation.
func (c *Container) Close() error {
	var errs []error
	if c.Broadcaster != nil {
		c.Broadcaster.Close()
	}
	if c.Revalidator != nil {
		errs = append(errs, c.Revalidator.Close())
	}
	if c.gateClient != nil {
		errs = append(errs, c.gateClient.Close())
	}
	if c.CacheBackend != nil {
		errs = append(errs, c.CacheBackend.Close())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	return errors.Join(errs...)
}
