package database

import (
	"strings"

	"github.com/cockroachdb/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aldoetobex/caseflow/pkg/models"
)

const sqlitePrefix = "sqlite://"

// Open connects to Postgres, or to SQLite when dsn starts with sqlite://
// (e.g. sqlite://caseflow.db or sqlite://file:test?mode=memory&cache=shared).
func Open(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database url is empty")
	}
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// NamingStrategy: schema.NamingStrategy{SingularTable: true},
	}

	if strings.HasPrefix(dsn, sqlitePrefix) {
		db, err := gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)), cfg)
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite")
		}
		// SQLite has a single writer; one connection keeps transactions serialized.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "sqlite pool")
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return db, nil
}

// Migrate creates or updates the case tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Case{}, &models.Document{}, &models.TimelineEntry{}); err != nil {
		return errors.Wrap(err, "migration failed")
	}
	return nil
}
