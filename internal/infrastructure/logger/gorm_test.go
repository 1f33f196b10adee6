package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func statement() (string, int64) { return "SELECT * FROM accounts", 3 }

func TestGormLogger_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), gormlogger.Info, 50*time.Millisecond)
	ctx := WithTenantID(WithRequestID(context.Background(), "req-1"), "tenant-1")

	l.Trace(ctx, time.Now(), statement, nil)
	l.Trace(ctx, time.Now().Add(-time.Second), statement, nil)
	l.Trace(ctx, time.Now(), statement, errors.New("deadlock detected"))
	l.Trace(ctx, time.Now(), statement, gormlogger.ErrRecordNotFound)

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "Slow SQL", entries[1].Message)
	assert.Equal(t, "SQL failed", entries[2].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[3].Level, "not found is not an error")

	fields := entries[2].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "tenant-1", fields["tenant_id"])
	assert.Equal(t, "SELECT * FROM accounts", fields["sql"])
	assert.EqualValues(t, 3, fields["rows"])
}

func TestGormLogger_LevelFilters(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), gormlogger.Warn, 0)

	l.Trace(context.Background(), time.Now(), statement, nil)
	l.Info(context.Background(), "migrating %s", "accounts")
	assert.Equal(t, 0, logs.Len())

	l.Warn(context.Background(), "slow pool %d", 1)
	l.Trace(context.Background(), time.Now().Add(-time.Second), statement, nil)
	assert.Equal(t, 2, logs.Len())

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), statement, errors.New("boom"))
	silent.Error(context.Background(), "boom")
	assert.Equal(t, 2, logs.Len())
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, GormLevel("silent"))
	assert.Equal(t, gormlogger.Error, GormLevel("error"))
	assert.Equal(t, gormlogger.Info, GormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, GormLevel("anything"))
}
