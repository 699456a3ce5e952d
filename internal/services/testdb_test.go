package services

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/franciosse/piscine-organique-backend/internal/types"
)

// newTestDB opens a per-test in-memory sqlite database with the same error
// translation the postgres setup uses, so unique-violation recovery paths
// behave like production.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := gdb.AutoMigrate(
		&types.User{},
		&types.Course{},
		&types.Chapter{},
		&types.Lesson{},
		&types.Purchase{},
		&types.ProgressRecord{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}
