// Package testing provides test utilities and database setup for testing the orchestrator
package testing

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB represents a test database instance
type TestDB struct {
	DB   *gorm.DB
	Name string
	dir  string
}

// SetupTestDB creates a file-backed SQLite database in a fresh temp dir and migrates every model
func SetupTestDB() (*TestDB, error) {
	dir, err := os.MkdirTemp("", "orochi_outreach_test_")
	if err != nil {
		return nil, fmt.Errorf("failed to create test database dir: %w", err)
	}

	path := filepath.Join(dir, "test.db")
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: utils.UTCNow,
	})
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to open test database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// SQLite has a single writer; one connection keeps concurrent tests deterministic
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		sqlDB.Close()
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to migrate test database %s: %w", path, err)
	}

	return &TestDB{DB: db, Name: path, dir: dir}, nil
}

// TeardownTestDB closes connections and removes the database files
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB != nil {
		if sqlDB, err := tdb.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if tdb.dir == "" {
		return nil
	}
	return os.RemoveAll(tdb.dir)
}

// ClearAllTables removes all data from tables while preserving structure
func (tdb *TestDB) ClearAllTables() error {
	tables := []string{
		"campaign_decisions",
		"orchestrator_runs",
		"outreach_replies",
		"outreach_attempts",
		"contact_progress",
		"contacts",
		"unsubscribes",
		"suppressions",
		"campaign_leases",
		"campaign_controls",
		"campaigns",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}

	return nil
}

// TestWithDB is a helper function that sets up a test database, runs the test function, and cleans up
func TestWithDB(testFunc func(*TestDB) error) error {
	testDB, err := SetupTestDB()
	if err != nil {
		return fmt.Errorf("failed to setup test database: %w", err)
	}
	defer func() {
		if cleanupErr := testDB.TeardownTestDB(); cleanupErr != nil {
			log.Printf("Warning: failed to cleanup test database: %v", cleanupErr)
		}
	}()

	return testFunc(testDB)
}

// CreateTestContext creates a context for testing
func CreateTestContext() context.Context {
	return context.Background()
}
