package database

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/totegamma/ticketgate/internal/infra/database/models"
)

func NewPostgres(dsn string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             300 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// ConnectPostgres retries NewPostgres until the database answers or ctx ends.
func ConnectPostgres(ctx context.Context, dsn string) (*gorm.DB, error) {
	var db *gorm.DB
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = time.Minute

	err := backoff.Retry(func() error {
		conn, err := NewPostgres(dsn)
		if err != nil {
			slog.Warn(
				"postgres not ready",
				slog.String("error", err.Error()),
				slog.String("module", "database"),
			)
			return err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		db = conn
		return nil
	}, backoff.WithContext(b, ctx))

	return db, err
}

func MigratePostgres(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.UsedTicket{},
		&models.LedgerEntry{},
		&models.QueuedScan{},
		&models.Admission{},
		&models.Device{},
		&models.Event{},
	)
}
