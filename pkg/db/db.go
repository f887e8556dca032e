package db

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/leadforge/outreach-orchestrator/pkg/db/models"
)

// SetupDatabase opens (creating if needed) the on-disk SQLite progress
// database and ensures the schema exists. The DSN requests immediate
// transaction locking so that claim transactions take the write lock at
// BEGIN, making concurrent claims strictly serialized.
func SetupDatabase(logger *logrus.Logger, dbPath string) (*gorm.DB, error) {
	logger.WithField("db_path", dbPath).Debug("Starting database setup")

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?%s", dbPath, url.Values{
		"_txlock":       {"immediate"},
		"_busy_timeout": {"5000"},
		"_journal_mode": {"WAL"},
	}.Encode())

	logger.Debug("Establishing GORM database connection")

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite serializes writes; a single connection avoids SQLITE_BUSY
	// churn between concurrent claim transactions.
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// Auto-migrate the schema
	if err := gdb.AutoMigrate(&models.Task{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database schema: %w", err)
	}

	logger.Info("Database setup completed successfully")
	return gdb, nil
}
