// Package testutil opens throwaway databases for package tests
package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sprayline/foamops-api/internal/database"
)

// SetupTestDB returns a migrated database private to t. It is an in-memory
// SQLite database unless TEST_DATABASE_DSN points at a PostgreSQL instance,
// in which case the tables are emptied when the test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	if dsn := os.Getenv("TEST_DATABASE_DSN"); dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		require.NoError(t, err, "failed to connect to TEST_DATABASE_DSN")
		require.NoError(t, database.AutoMigrate(db))
		t.Cleanup(func() { CleanupTestData(t, db) })
		return db
	}

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.NewSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CleanupTestData empties every table the service writes
func CleanupTestData(t *testing.T, db *gorm.DB) {
	tables := []string{
		"outbox_events",
		"profit_loss_records",
		"material_usage_logs",
		"purchase_orders",
		"estimates",
		"warehouse_items",
		"warehouses",
		"company_settings",
		"number_sequences",
	}
	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			t.Logf("could not clean table %s: %v", table, err)
		}
	}
}
