package database

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"blogapi/internal/config"
	"blogapi/internal/models"
	"blogapi/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func memoryConfig() *config.Config {
	return &config.Config{DBDriver: config.DriverSQLite, DBPath: ":memory:"}
}

func TestConnect_SQLiteMemoryMigrates(t *testing.T) {
	db, err := Connect(memoryConfig(), observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	assert.True(t, db.Migrator().HasTable(&models.User{}))
	assert.True(t, db.Migrator().HasTable(&models.BlogPost{}))
	assert.True(t, db.Migrator().HasTable("blog_posts"))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, Ping(context.Background(), db))
}

func TestConnect_TranslatesDuplicateKey(t *testing.T) {
	db, err := Connect(memoryConfig(), observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, db.Create(&models.User{Username: "alice", Password: "x"}).Error)
	err = db.Create(&models.User{Username: "alice", Password: "y"}).Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
}

func TestConnect_NowFuncIsUTC(t *testing.T) {
	db, err := Connect(memoryConfig(), observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	assert.Equal(t, time.UTC, db.NowFunc().Location())
}

func TestDialector(t *testing.T) {
	d, err := Dialector(&config.Config{DBDriver: config.DriverPostgres, DBHost: "h", DBName: "n"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = Dialector(memoryConfig())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	_, err = Dialector(&config.Config{DBDriver: "mysql"})
	assert.Error(t, err)
}

func TestCustomGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(observability.NewLoggerTo(&buf, "production"))
	ctx := context.Background()
	fc := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), fc, gorm.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), fc, gorm.ErrDuplicatedKey)
	assert.Empty(t, buf.String())

	l.Trace(ctx, time.Now(), fc, errors.New("syntax error"))
	assert.Contains(t, buf.String(), "GORM query error")
	assert.Contains(t, buf.String(), "SELECT 1")

	buf.Reset()
	l.Trace(ctx, time.Now().Add(-time.Second), fc, nil)
	assert.Contains(t, buf.String(), "GORM slow query")

	buf.Reset()
	silent := l.LogMode(logger.Silent)
	silent.Trace(ctx, time.Now().Add(-time.Second), fc, errors.New("ignored"))
	assert.Empty(t, buf.String())
}
