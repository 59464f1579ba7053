package database

import (
	"fmt"
	"log/slog"
	"time"

	"go-pharmacy-pos/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options configures Connect.
type Options struct {
	Driver   string // mysql, postgres or sqlite
	DSN      string
	LogLevel string // silent, error, warn, info
	Attempts int
	Backoff  time.Duration
}

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Connect opens the database, retrying while it comes up, and syncs the schema.
func Connect(log *slog.Logger, opts Options) (*gorm.DB, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("database DSN not configured")
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 5
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	dial, err := dialector(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	for i := 0; i < opts.Attempts; i++ {
		db, err = gorm.Open(dial, &gorm.Config{
			Logger: logger.Default.LogMode(gormLogLevel(opts.LogLevel)),
		})
		if err == nil {
			break
		}
		log.Warn("database not ready, retrying", "attempt", i+1, "of", opts.Attempts, "err", err)
		time.Sleep(opts.Backoff)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", opts.Attempts, err)
	}
	log.Info("connected to database", "driver", opts.Driver)

	if opts.Driver == "sqlite" {
		// one writer keeps sqlite from returning SQLITE_BUSY under concurrent checkouts
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database schema synced")
	return db, nil
}

// Migrate creates or updates every table the core owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	return nil
}
