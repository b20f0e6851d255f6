package db

import (
	"context"
	"fmt"
	"time"

	"github.com/SundayYogurt/ims_service/config"
	"github.com/SundayYogurt/ims_service/internal/domain"
	"github.com/SundayYogurt/ims_service/internal/repository"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fixed id shared by every replica so only one runs migrations at a time
const migrateLockID int64 = 20260222

// one card per student until it is revoked; both drivers support partial indexes
const liveCardIndex = `CREATE UNIQUE INDEX IF NOT EXISTS uidx_student_cards_live
	ON student_cards (student_id) WHERE status <> 'REVOKED'`

func Open(cfg config.Config, logger logrus.FieldLogger) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: gormlogger.New(
			logger,
			gormlogger.Config{
				SlowThreshold:             500 * time.Millisecond,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
		TranslateError: true,
	}

	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		db, err := gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DatabaseDSN,
			PreferSimpleProtocol: true,
		}), gcfg)
		if err != nil {
			return nil, fmt.Errorf("database connection error: %w", err)
		}
		return db, nil
	case config.DriverSqlite:
		dsn := cfg.DatabaseDSN
		if dsn == "" {
			return OpenMemory()
		}
		db, err := gorm.Open(sqlite.Open(dsn), gcfg)
		if err != nil {
			return nil, fmt.Errorf("database connection error: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

// OpenMemory opens a private in-memory sqlite database.
func OpenMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates or updates every table and seeds the role rows. On
// Postgres it runs under an advisory lock.
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("SELECT pg_advisory_lock(?)", migrateLockID).Error; err != nil {
			return fmt.Errorf("migration lock error: %w", err)
		}
		defer func() {
			_ = db.Exec("SELECT pg_advisory_unlock(?)", migrateLockID).Error
		}()
	}

	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	if err := db.Exec(liveCardIndex).Error; err != nil {
		return fmt.Errorf("create live card index: %w", err)
	}

	if err := repository.NewRoleRepository(db).EnsureRoles(context.Background(), domain.RoleCodes); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	return nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
