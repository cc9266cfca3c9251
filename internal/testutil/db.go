package testutil

import (
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bookingflow/internal/database"
)

// NewDB opens an isolated in-memory SQLite database and migrates the given models.
// A single connection keeps every query on the same in-memory database.
func NewDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	db, err := database.ConnectWithConfig(":memory:", &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db, models...); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return db
}
