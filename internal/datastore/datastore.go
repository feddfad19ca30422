// Package datastore opens the SiteWatch database and runs migrations.
package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/plantops/sitewatch/internal/conf"
	"github.com/plantops/sitewatch/internal/datastore/entities"
)

// Open connects to the configured database backend and migrates the schema.
func Open(settings *conf.DatabaseSettings) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	}

	var db *gorm.DB
	var err error
	switch settings.Type {
	case "sqlite":
		// _foreign_keys=ON so schedule/log cascades behave like MySQL.
		db, err = gorm.Open(sqlite.Open(settings.Path+"?_foreign_keys=ON"), gormCfg)
	case "mysql":
		db, err = gorm.Open(mysql.Open(settings.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database type %q", settings.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", settings.Type, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the SiteWatch tables.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entities.Site{},
		&entities.Equipment{},
		&entities.MaintenanceSchedule{},
		&entities.MaintenanceLog{},
		&entities.NotificationLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return nil
}
