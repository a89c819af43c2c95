package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMemoryManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.ConnectSqlite(""))
	require.NoError(t, m.Setup())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestConnectSqlite_Memory(t *testing.T) {
	m := newMemoryManager(t)

	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	for _, tbl := range model.DatabaseModels {
		assert.True(t, m.DB.Migrator().HasTable(tbl), "%T not migrated", tbl)
	}
}

func TestConnectSqlite_MemoryDatabasesAreIsolated(t *testing.T) {
	a := newMemoryManager(t)
	b := newMemoryManager(t)

	require.NoError(t, a.DB.Create(&model.Session{UUID: "a", StartTime: time.Now()}).Error)

	var count int64
	require.NoError(t, b.DB.Model(&model.Session{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDumpMemoryToDisk(t *testing.T) {
	m := newMemoryManager(t)
	require.NoError(t, m.DB.Create(&model.Session{UUID: "dumped", StartTime: time.Now()}).Error)

	m.SqliteFilePath = filepath.Join(t.TempDir(), "out", "session.db")
	require.NoError(t, m.DumpMemoryToDisk())
	// a second dump replaces the first
	require.NoError(t, m.DumpMemoryToDisk())

	disk, err := gorm.Open(sqlite.Open(m.SqliteFilePath), &gorm.Config{})
	require.NoError(t, err)
	var s model.Session
	require.NoError(t, s.GetByUUID(disk, "dumped"))
	assert.Equal(t, "dumped", s.UUID)

	sqlDB, err := disk.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	paths, err := GetBackupDBPaths(filepath.Dir(m.SqliteFilePath))
	require.NoError(t, err)
	assert.Equal(t, []string{m.SqliteFilePath}, paths)
}

func TestDumpMemoryDBToDisk_Errors(t *testing.T) {
	m := newMemoryManager(t)

	assert.Error(t, DumpMemoryDBToDisk(m.DB, ""))
	assert.Error(t, DumpMemoryDBToDisk(m.DB, "it's.db"))
}

func TestManager_NotConnected(t *testing.T) {
	m := NewManager(zerolog.Nop())

	assert.ErrorIs(t, m.Setup(), ErrNotConnected)
	assert.ErrorIs(t, m.DumpMemoryToDisk(), ErrNotConnected)
	assert.NoError(t, m.Close())
}

func TestGetBackupDBPaths_MissingDir(t *testing.T) {
	_, err := GetBackupDBPaths(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, os.IsNotExist(err))
}
