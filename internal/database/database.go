package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sprayline/foamops-api/internal/config"
	"github.com/sprayline/foamops-api/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database selected by cfg.Driver
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "", "postgres":
		return NewDatabase(cfg)
	case "sqlite":
		db, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		// sqlite has no schema migrations of its own
		if err := AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := cfg.ConnectionString()

	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// NewSQLite opens a SQLite database at path (":memory:" or a file: DSN work too).
// A single connection keeps writers serialised.
func NewSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// AutoMigrate creates the schema from the models. Postgres deployments use
// the goose migrations instead; this serves sqlite and tests.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Estimate{},
		&domain.Warehouse{},
		&domain.WarehouseItem{},
		&domain.PurchaseOrder{},
		&domain.MaterialUsageLog{},
		&domain.ProfitLossRecord{},
		&domain.NumberSequence{},
		&domain.CompanySettings{},
		&domain.OutboxEvent{},
		&domain.DeletedEstimate{},
	)
}

// Ping checks the connection, used by the health endpoint
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
