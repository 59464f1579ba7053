// Package dbtest opens throwaway sqlite databases for package tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"go-pharmacy-pos/internal/database"
	"go-pharmacy-pos/internal/logging"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Open returns a migrated sqlite database living in the test's temp dir.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "pos.db") + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := database.Connect(logging.Discard(), database.Options{
		Driver:   "sqlite",
		DSN:      dsn,
		LogLevel: "silent",
		Attempts: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
