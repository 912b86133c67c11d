// Package repo implements the storage layer for call records, backed by GORM
// over an in-memory SQLite database (pure Go driver). This file contains the
// bootstrapping helpers and schema migration.
package repo

import (
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-call-agent/internal/domain"
)

// OpenSQLite opens the in-memory SQLite database named by dsn and applies
// PRAGMAs.
//
// The pool is pinned to a single connection that is never recycled: an
// in-memory database lives exactly as long as its last open connection, and
// one connection also serializes writers.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxIdleTime(0)
	sqlDB.SetConnMaxLifetime(0)

	return db, nil
}

// AutoMigrate creates or updates the schema for all domain models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Call{},
		&domain.FormSubmission{},
	)
}
