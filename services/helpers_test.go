package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"duel-arena/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB returns a migrated in-memory sqlite database private to t.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.HouseRecord{},
		&models.PlayerRecord{},
		&models.MatchRecord{},
		&models.PilotProfile{},
		&models.PayoutReceipt{},
	))
	return db
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
