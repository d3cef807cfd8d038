// Package storage persists sites, their response history, alert records and
// the dashboard administrator through GORM, on SQLite or PostgreSQL.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"webmonitor/internal/config"
)

// slowQuery is the duration above which a statement is logged as slow.
const slowQuery = 500 * time.Millisecond

// Storage wraps the GORM database instance and provides access to it.
type Storage struct {
	db *gorm.DB
}

// New opens the configured database and migrates the schema.
//
// Supported drivers:
//   - "sqlite": single-node deployments and tests
//   - "postgres": shared deployments
//
// Pool limits come from config.StorageConfig.
func New(cfg config.StorageConfig) (*Storage, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(gormWriter{}, logger.Config{
			SlowThreshold:             slowQuery,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve sql.DB from GORM: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(&Site{}, &ResponseRecord{}, &Admin{}, &AlertRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}

	log.Debug().Str("driver", cfg.Driver).Msg("Storage ready")
	return &Storage{db: db}, nil
}

func openDialector(cfg config.StorageConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		sep := "?"
		if strings.Contains(cfg.DSN, "?") {
			sep = "&"
		}
		return sqlite.Open(cfg.DSN + sep + "_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// gormWriter sends GORM's warnings (slow queries, failed statements) to
// the global zerolog logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	log.Warn().Str("component", "gorm").Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// DB returns the underlying GORM database instance.
func (s *Storage) DB() *gorm.DB {
	return s.db
}

// Ping verifies the database connection is alive.
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve sql.DB for closing: %w", err)
	}
	return sqlDB.Close()
}
