package config

import (
	"testing"

	"github.com/campusride/api-go/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestMigrateCreatesEveryTable(t *testing.T) {
	db := openMemoryDB(t)
	require.NoError(t, Migrate(db))

	for _, model := range models.All() {
		assert.True(t, db.Migrator().HasTable(model), "%T", model)
	}
	assert.True(t, db.Migrator().HasColumn(&models.Notification{}, "channels"))
	assert.True(t, db.Migrator().HasColumn(&models.MarketplaceItem{}, "images"))

	// Running again is a no-op.
	require.NoError(t, Migrate(db))
}

func TestStringListRoundTrip(t *testing.T) {
	db := openMemoryDB(t)
	require.NoError(t, Migrate(db))

	n := models.Notification{
		UserID:   "u1",
		Type:     "system_announcement",
		Title:    "Hello",
		Channels: models.StringList{models.ChannelSocket, "with,comma"},
		Priority: "normal",
	}
	require.NoError(t, db.Create(&n).Error)

	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", n.ID).Error)
	assert.Equal(t, n.Channels, stored.Channels)

	empty := models.Notification{UserID: "u1", Type: "x", Title: "t", Priority: "low"}
	require.NoError(t, db.Create(&empty).Error)
	var storedEmpty models.Notification
	require.NoError(t, db.First(&storedEmpty, "id = ?", empty.ID).Error)
	assert.Empty(t, storedEmpty.Channels)
}
