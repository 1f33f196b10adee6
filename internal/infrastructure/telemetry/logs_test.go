package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type memoryExporter struct {
	mu     sync.Mutex
	bodies []string
}

func (e *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.bodies = append(e.bodies, r.Body().AsString())
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryExporter) ForceFlush(context.Context) error { return nil }

func (e *memoryExporter) exported() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.bodies...)
}

func TestLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), config.TelemetryConfig{}, "test", nil)
	require.NoError(t, err)
	assert.False(t, lp.Enabled())
	assert.False(t, lp.Core("ledger", zapcore.DebugLevel).Enabled(zapcore.ErrorLevel))

	base := zap.NewNop()
	assert.Same(t, base, lp.Bridge(base, "ledger", zapcore.InfoLevel))
	assert.NoError(t, lp.ForceFlush(context.Background()))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestLoggerProvider_BridgeTeesRecords(t *testing.T) {
	exporter := &memoryExporter{}
	lp := &LoggerProvider{
		provider: sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter))),
		logger:   zap.NewNop(),
	}
	defer func() { _ = lp.Shutdown(context.Background()) }()

	core, local := observer.New(zapcore.DebugLevel)
	logger := lp.Bridge(zap.New(core), "ledger", zapcore.InfoLevel)

	logger.Debug("replaying ledger")
	logger.Warn("balance drift corrected", zap.Int("snapshots", 2))

	assert.Equal(t, 2, local.Len(), "the base core keeps every level")
	assert.Equal(t, []string{"balance drift corrected"}, exporter.exported())
}
