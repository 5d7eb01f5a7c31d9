// Package config loads the service configuration from the environment, an
// optional .env or YAML file and command-line flags.
package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendBolt   = "bolt"

	DraftCachePolicyCache = "cache"
	DraftCachePolicySkip  = "skip"
)

// Config is the full runtime configuration. mapstructure keys are the
// lowercased environment variable names.
type Config struct {
	// Server
	Port               string        `mapstructure:"port" validate:"required,numeric"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout" validate:"gt=0"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout" validate:"gt=0"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout" validate:"gt=0"`
	GinMode            string        `mapstructure:"gin_mode" validate:"oneof=debug release test"`
	CORSOrigins        []string      `mapstructure:"cors_origins"`

	// Database
	DBDriver           string        `mapstructure:"db_driver" validate:"oneof=sqlite3 libsql"`
	SQLitePath         string        `mapstructure:"sqlite_path" validate:"required_if=DBDriver sqlite3"`
	TursoDatabase      string        `mapstructure:"turso_database" validate:"required_if=DBDriver libsql"`
	TursoToken         string        `mapstructure:"turso_token"`
	DBMaxOpenConns     int           `mapstructure:"db_max_open_conns" validate:"gte=1"`
	DBMaxIdleConns     int           `mapstructure:"db_max_idle_conns" validate:"gte=0"`
	DBConnMaxLifetime  time.Duration `mapstructure:"db_conn_max_lifetime"`
	DBConnMaxIdleTime  time.Duration `mapstructure:"db_conn_max_idle_time"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold" validate:"gt=0"`
	AutoMigrate        bool          `mapstructure:"auto_migrate"`
	SeedContent        bool          `mapstructure:"seed_content"`

	// Cache
	CacheBackend         string        `mapstructure:"cache_backend" validate:"oneof=memory redis bolt"`
	RedisURL             string        `mapstructure:"redis_url" validate:"required_if=CacheBackend redis,required_if=DebounceBackend redis"`
	BoltPath             string        `mapstructure:"bolt_path" validate:"required_if=CacheBackend bolt"`
	CacheNamespace       string        `mapstructure:"cache_namespace" validate:"required"`
	RouterCacheTTL       time.Duration `mapstructure:"router_cache_ttl" validate:"gt=0"`
	NotFoundCacheTTL     time.Duration `mapstructure:"not_found_cache_ttl" validate:"gt=0,ltfield=RouterCacheTTL"`
	SnapshotTTL          time.Duration `mapstructure:"snapshot_ttl" validate:"gt=0"`
	TagRegistryTTL       time.Duration `mapstructure:"tag_registry_ttl" validate:"gt=0"`
	DraftCachePolicy     string        `mapstructure:"draft_cache_policy" validate:"oneof=cache skip"`
	CacheCleanupInterval time.Duration `mapstructure:"cache_cleanup_interval" validate:"gt=0"`
	CacheCleanupVerbose  bool          `mapstructure:"cache_cleanup_verbose"`

	// Invalidation
	DebounceBackend       string        `mapstructure:"debounce_backend" validate:"oneof=memory redis"`
	DebounceWindow        time.Duration `mapstructure:"debounce_window" validate:"gte=0"`
	FrontendURL           string        `mapstructure:"frontend_url" validate:"omitempty,url"`
	WordPressURL          string        `mapstructure:"wordpress_url" validate:"omitempty,url"`
	RevalidateTimeout     time.Duration `mapstructure:"revalidate_timeout" validate:"gt=0"`
	RevalidateConcurrency int           `mapstructure:"revalidate_concurrency" validate:"gte=1"`
	RevalidateTypeTags    bool          `mapstructure:"revalidate_type_tags"`
	HookSecret            string        `mapstructure:"hook_secret"`

	// Listings
	PostsPerPage int `mapstructure:"posts_per_page" validate:"gte=1,lte=100"`

	// Logging
	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogJSON   bool   `mapstructure:"log_json"`
	LogDir    string `mapstructure:"log_dir"`
	LogToFile bool   `mapstructure:"log_to_file"`
}

var defaults = map[string]any{
	"port":                   "8080",
	"server_read_timeout":    15 * time.Second,
	"server_write_timeout":   15 * time.Second,
	"server_idle_timeout":    60 * time.Second,
	"gin_mode":               "release",
	"cors_origins":           []string{"*"},
	"db_driver":              "sqlite3",
	"sqlite_path":            "data/nextpress.db",
	"turso_database":         "",
	"turso_token":            "",
	"db_max_open_conns":      10,
	"db_max_idle_conns":      3,
	"db_conn_max_lifetime":   30 * time.Minute,
	"db_conn_max_idle_time":  3 * time.Minute,
	"slow_query_threshold":   500 * time.Millisecond,
	"auto_migrate":           true,
	"seed_content":           false,
	"cache_backend":          CacheBackendMemory,
	"redis_url":              "",
	"bolt_path":              "data/router-cache.db",
	"cache_namespace":        "nextpress",
	"router_cache_ttl":       time.Hour,
	"not_found_cache_ttl":    5 * time.Minute,
	"snapshot_ttl":           10 * time.Minute,
	"tag_registry_ttl":       time.Hour,
	"draft_cache_policy":     DraftCachePolicyCache,
	"cache_cleanup_interval": 5 * time.Minute,
	"cache_cleanup_verbose":  false,
	"debounce_backend":       CacheBackendMemory,
	"debounce_window":        10 * time.Second,
	"frontend_url":           "",
	"wordpress_url":          "",
	"revalidate_timeout":     5 * time.Second,
	"revalidate_concurrency": 4,
	"revalidate_type_tags":   true,
	"hook_secret":            "",
	"posts_per_page":         10,
	"log_level":              "info",
	"log_json":               true,
	"log_dir":                "logs",
	"log_to_file":            false,
}

var secretKeys = map[string]bool{
	"hook_secret": true,
	"turso_token": true,
	"redis_url":   true,
}

// Load reads configuration with precedence flags > environment > file >
// defaults. configFile may be empty, in which case a .env file in the
// working directory is used when present. flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := readConfigFile(v, configFile); err != nil {
		return nil, err
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logOverrides(v)
	return cfg, nil
}

// Default returns the configuration with every key at its default value.
func Default() *Config {
	cfg, err := Load("", nil)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// Validate checks field constraints, including that negative results expire
// before positive ones.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// CacheDrafts reports whether resolved drafts are written to the cache.
func (c *Config) CacheDrafts() bool {
	return c.DraftCachePolicy == DraftCachePolicyCache
}

func readConfigFile(v *viper.Viper, configFile string) error {
	if configFile == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		configFile = ".env"
	}

	v.SetConfigFile(configFile)
	if strings.HasSuffix(configFile, ".env") {
		v.SetConfigType("env")
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}
	log.Printf("Loading configuration overrides from %s...", v.ConfigFileUsed())
	return nil
}

// bindFlags maps dashed flag names onto config keys: --log-level sets
// log_level.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(flag *pflag.Flag) {
		key := strings.ReplaceAll(flag.Name, "-", "_")
		if _, known := defaults[key]; !known {
			return
		}
		if err := v.BindPFlag(key, flag); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	})
	return bindErr
}

func logOverrides(v *viper.Viper) {
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		def := fmt.Sprint(defaults[key])
		val := fmt.Sprint(v.Get(key))
		if val == def {
			continue
		}
		if secretKeys[key] {
			val = "****"
		}
		log.Printf("Config override: %s=%s (default: %s)", strings.ToUpper(key), val, def)
	}
}
