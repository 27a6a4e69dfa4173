package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"DirectChat/models"
	utils "DirectChat/pkg/utills"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Options struct {
	Driver string // sqlite, mysql, postgres
	DSN    string
	// NowFunc overrides gorm's clock for autoCreateTime/autoUpdateTime fields.
	NowFunc func() time.Time
}

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "", "sqlite":
		return sqlite.Open(withSQLiteForeignKeys(dsn)), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

// withSQLiteForeignKeys turns on FK enforcement, which sqlite leaves off by default.
func withSQLiteForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

// Open connects and migrates. Duplicate-key errors are translated to
// gorm.ErrDuplicatedKey so callers can detect unique index races.
func Open(opts Options) (*gorm.DB, error) {
	dial, err := dialector(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         NewGormLogger(200 * time.Millisecond),
	}
	if opts.NowFunc != nil {
		cfg.NowFunc = opts.NowFunc
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.Driver == "" || opts.Driver == "sqlite" {
		// one writer at a time; keeps transactions from tripping SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{}); err != nil {
		return err
	}
	return backfillSearchText(db)
}

// backfillSearchText fills search_text on rows written before the column existed.
func backfillSearchText(db *gorm.DB) error {
	var users []models.User
	err := db.Where("search_text IS NULL OR search_text = ?", "").
		FindInBatches(&users, 500, func(tx *gorm.DB, _ int) error {
			for i := range users {
				if err := tx.Model(&users[i]).UpdateColumn("search_text", users[i].SearchKey()).Error; err != nil {
					return err
				}
			}
			return nil
		}).Error
	if err != nil {
		return fmt.Errorf("backfill users: %w", err)
	}

	var msgs []models.Message
	err = db.Where("search_text IS NULL OR search_text = ?", "").
		FindInBatches(&msgs, 500, func(tx *gorm.DB, _ int) error {
			for i := range msgs {
				if err := tx.Model(&msgs[i]).UpdateColumn("search_text", utils.Fold(msgs[i].Content)).Error; err != nil {
					return err
				}
			}
			return nil
		}).Error
	if err != nil {
		return fmt.Errorf("backfill messages: %w", err)
	}
	return nil
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
