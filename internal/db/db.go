package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"civicpulse/internal/models"
)

// DefaultDSN is used for local development when DATABASE_URL is not set.
const DefaultDSN = "host=localhost user=postgres password=postgres dbname=civicpulse port=5432 sslmode=disable TimeZone=UTC"

// Open connects to Postgres and returns the handle. The caller owns it and
// must release it with Close.
func Open(dsn string, log logrus.FieldLogger) (*gorm.DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}

	conn, err := gorm.Open(postgres.Open(dsn), Config(log))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info("Database connection established")
	return conn, nil
}

// Config is the gorm configuration shared by Open and tests.
// TranslateError turns unique violations into gorm.ErrDuplicatedKey.
func Config(log logrus.FieldLogger) *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// Migrate creates or updates the tables and their unique indexes.
func Migrate(conn *gorm.DB, log logrus.FieldLogger) error {
	err := conn.AutoMigrate(
		&models.Issue{},
		&models.PaymentRecord{},
		&models.User{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Info("Database migration completed")
	return nil
}

func Close(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
