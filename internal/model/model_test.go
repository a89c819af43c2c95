package model

import (
	"database/sql"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSqlite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(DatabaseModels...))
	return db
}

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Session", &Session{}, "sessions"},
		{"ObjectEvent", &ObjectEvent{}, "object_events"},
		{"ObjectState", &ObjectState{}, "object_states"},
		{"SceneState", &SceneState{}, "scene_states"},
		{"ReceiverPerformance", &ReceiverPerformance{}, "receiver_performances"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModels_AllHaveTableNames(t *testing.T) {
	for _, m := range DatabaseModels {
		_, ok := m.(interface{ TableName() string })
		assert.True(t, ok, "%T has no TableName", m)
	}
}

func TestSession_GetByUUID_Sqlite(t *testing.T) {
	db := openSqlite(t)
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)

	require.NoError(t, db.Create(&Session{
		UUID:      "b7e1",
		StartTime: start,
		EndTime:   sql.NullTime{Time: end, Valid: true},
		Settings:  []byte(`{"flipX":true}`),
	}).Error)

	var s Session
	require.NoError(t, s.GetByUUID(db, "b7e1"))
	assert.True(t, start.Equal(s.StartTime), "start %s", s.StartTime)
	require.True(t, s.EndTime.Valid)
	assert.True(t, end.Equal(s.EndTime.Time), "end %s", s.EndTime.Time)
	assert.JSONEq(t, `{"flipX":true}`, string(s.Settings))

	assert.ErrorIs(t, s.GetByUUID(db, "missing"), gorm.ErrRecordNotFound)
}

func TestReceiverPerformance_LargeCounts(t *testing.T) {
	db := openSqlite(t)
	require.NoError(t, db.Create(&Session{UUID: "c", StartTime: time.Now()}).Error)

	row := ReceiverPerformance{Time: time.Now(), SessionID: 1, Live: 70000, Visible: 65536, InboxLen: 100_000}
	require.NoError(t, db.Create(&row).Error)

	var got ReceiverPerformance
	require.NoError(t, db.First(&got, row.ID).Error)
	assert.Equal(t, 70000, got.Live)
	assert.Equal(t, 65536, got.Visible)
	assert.Equal(t, 100_000, got.InboxLen)
}
