package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/codename/server/internal/config"
	"github.com/codename/server/internal/models"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a MySQL connection and optionally runs auto-migration.
func Connect(cfg *config.AppConfig, autoMigrate bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDev() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               cfg.DSN,
		DefaultStringSize: 191,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if autoMigrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return db, nil
}

// Migrate runs GORM auto-migration for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.UserModel{},
		&models.CodenameModel{},
		&models.ReferenceModel{},
		&models.ImageModel{},
		&models.ImageVoteModel{},
		&models.ContentModel{},
	)
}

// Drop removes every table. Used by the CLI only.
func Drop(db *gorm.DB) error {
	return db.Migrator().DropTable(
		&models.ImageVoteModel{},
		&models.ImageModel{},
		&models.ReferenceModel{},
		&models.CodenameModel{},
		&models.ContentModel{},
		&models.UserModel{},
	)
}

// IsDuplicateEntry reports whether err is a uniqueness-constraint violation.
// MySQL surfaces error 1062; SQLite (used in tests) reports a UNIQUE
// constraint failure as plain text.
func IsDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
