package database

import (
	"fmt"
	"time"

	"storefront-service/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresConfig carries the connection settings resolved by the service config.
type PostgresConfig struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
	SSLMode  string
	TimeZone string
}

// DSN renders the libpq keyword/value connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode, c.TimeZone,
	)
}

// Enabled reports whether enough settings are present to attempt a connection.
func (c PostgresConfig) Enabled() bool {
	return c.User != "" && c.Password != "" && c.DBName != "" && c.Host != ""
}

// ConnectPostgres opens the database with retries and migrates the label table.
func ConnectPostgres(cfg PostgresConfig, logger *zap.Logger) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < 5; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
		if err == nil {
			sqlDB, poolErr := db.DB()
			if poolErr == nil {
				sqlDB.SetMaxOpenConns(25)
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
			}

			logger.Info("Connected to PostgreSQL successfully")

			if err := db.AutoMigrate(&models.LabelRecord{}); err != nil {
				return nil, fmt.Errorf("AutoMigrate failed: %w", err)
			}
			return db, nil
		}

		logger.Warn("DB connection failed, retrying",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		time.Sleep(time.Duration(i+1) * 2 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
