// Package repository provides the gorm-backed entity store of the progression engine.
package repository

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/config"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

// DB holds the database connection.
type DB struct {
	*gorm.DB
}

// NewDB creates a new PostgreSQL connection.
func NewDB(cfg *config.PostgresConfig, log *logger.Logger) (*DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Connected to PostgreSQL")

	return &DB{db}, nil
}

// OpenSQLite opens an embedded SQLite database and creates the schema.
// The pool is limited to one connection so ":memory:" databases are shared
// by every query; callers inside a transaction must use the transaction's store.
func OpenSQLite(dsn string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	wrapped := &DB{db}
	if err := wrapped.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}
	return wrapped, nil
}

func gormConfig(log *logger.Logger) *gorm.Config {
	gormLogLevel := gormlogger.Warn
	if log.GetLevel() <= zerolog.DebugLevel {
		gormLogLevel = gormlogger.Info
	}

	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormLogLevel),
		TranslateError: true,
	}
}

// AutoMigrate runs database migrations for all models.
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&models.Profile{},
		&models.GamedMetric{},
		&models.Achievement{},
		&models.Prize{},
		&models.MetricLevel{},
		&models.MetricLevelGroup{},
		&models.MetricLevelGroupMetric{},
		&models.MetricLevelGroupLevel{},
		&models.ProfileMetric{},
		&models.ProfileMetricGroup{},
		&models.AchievementGrant{},
		&models.PrizeGrant{},
	)
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks if the database is healthy.
func (db *DB) Health() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
