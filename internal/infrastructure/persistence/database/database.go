// Package database provides the core functionality for creating and managing
// content database connections.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/security"
	"github.com/pomeg-dev/nextpress-go/pkg/config"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const (
	DriverSQLite = "sqlite3"
	DriverLibSQL = "libsql"

	// MemoryPath opens a private in-memory SQLite database.
	MemoryPath = ":memory:"
)

// Config describes a single content database connection.
type Config struct {
	Driver          string
	SQLitePath      string
	TursoDatabase   string
	TursoToken      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ConfigFrom extracts the connection settings from the service config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Driver:          cfg.DBDriver,
		SQLitePath:      cfg.SQLitePath,
		TursoDatabase:   cfg.TursoDatabase,
		TursoToken:      cfg.TursoToken,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	}
}

// DB wraps the pooled connection with what callers need to report on it.
type DB struct {
	*sql.DB
	Driver string
	target string
}

// Open establishes and pings a connection for the configured driver.
func Open(ctx context.Context, cfg Config, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	logger.Database().Debug("Creating new database connection", "driver", cfg.Driver)

	driver, dsn, target, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driver", driver)
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		logger.Database().Error("Database ping failed", "error", err.Error(), "driver", driver)
		return nil, fmt.Errorf("%s database ping failed: %w", driver, err)
	}

	if target == MemoryPath {
		// the memory database lives only as long as its one connection
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
		conn.SetConnMaxIdleTime(0)
	} else {
		if cfg.MaxOpenConns > 0 {
			conn.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	logger.Database().Info("Database connection established", "driver", driver, "target", target, "duration", time.Since(start))
	return &DB{DB: conn, Driver: driver, target: target}, nil
}

func dataSource(cfg Config) (driver, dsn, target string, err error) {
	switch cfg.Driver {
	case DriverLibSQL:
		if cfg.TursoDatabase == "" {
			return "", "", "", fmt.Errorf("libsql driver requires TURSO_DATABASE")
		}
		dsn = cfg.TursoDatabase
		if cfg.TursoToken != "" {
			dsn += "?authToken=" + cfg.TursoToken
		}
		return DriverLibSQL, dsn, cfg.TursoDatabase, nil
	case DriverSQLite, "":
		if cfg.SQLitePath == "" || cfg.SQLitePath == MemoryPath {
			name := "memdb" + strings.ToLower(security.GenerateULID())
			return DriverSQLite, "file:" + name + "?mode=memory&cache=shared&_foreign_keys=on", MemoryPath, nil
		}
		dbDir := filepath.Dir(cfg.SQLitePath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return "", "", "", fmt.Errorf("failed to create database directory: %w", err)
		}
		return DriverSQLite, "file:" + cfg.SQLitePath + "?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL", cfg.SQLitePath, nil
	default:
		return "", "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// GetConnectionInfo describes the connection for startup output.
func (db *DB) GetConnectionInfo() string {
	if db.Driver == DriverLibSQL {
		return fmt.Sprintf("Turso (%s)", db.target)
	}
	return fmt.Sprintf("SQLite (%s)", db.target)
}

// PoolInfo reports the connection pool counters.
func (db *DB) PoolInfo() map[string]any {
	stats := db.Stats()
	return map[string]any{
		"maxOpen": stats.MaxOpenConnections,
		"open":    stats.OpenConnections,
		"inUse":   stats.InUse,
		"idle":    stats.Idle,
	}
}
