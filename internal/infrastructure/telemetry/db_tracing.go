package telemetry

import (
	"errors"
	"time"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSlowQueryThreshold = 200 * time.Millisecond

// DBTracingOption customises RegisterDBTracing
type DBTracingOption func(*dbTracingOptions)

type dbTracingOptions struct {
	otelgorm []otelgorm.Option
}

// WithTracerProvider makes otelgorm use tp instead of the global provider
func WithTracerProvider(tp trace.TracerProvider) DBTracingOption {
	return func(o *dbTracingOptions) {
		o.otelgorm = append(o.otelgorm, otelgorm.WithTracerProvider(tp))
	}
}

// RegisterDBTracing installs the otelgorm plugin and a slow query hook on db.
// Statements slower than cfg.DBSlowQueryThresh are logged and flagged on the span.
func RegisterDBTracing(db *gorm.DB, cfg config.TelemetryConfig, logger *zap.Logger, opts ...DBTracingOption) error {
	if !cfg.DBTraceEnabled {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &dbTracingOptions{}
	for _, opt := range opts {
		opt(o)
	}

	pluginOpts := append([]otelgorm.Option{otelgorm.WithDBName(db.Dialector.Name())}, o.otelgorm...)
	if !cfg.DBLogFullSQL {
		pluginOpts = append(pluginOpts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(pluginOpts...)); err != nil {
		return err
	}

	threshold := cfg.DBSlowQueryThresh
	if threshold <= 0 {
		threshold = defaultSlowQueryThreshold
	}
	slow := func(tx *gorm.DB, operation string, elapsed time.Duration) {
		if elapsed < threshold {
			return
		}
		ctx := tx.Statement.Context
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.duration_ms", elapsed.Milliseconds()),
			)
		}
		fields := []zap.Field{
			zap.String("operation", operation),
			zap.String("table", tx.Statement.Table),
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", tx.Statement.RowsAffected),
		}
		if cfg.DBLogFullSQL {
			fields = append(fields, zap.String("sql", tx.Statement.SQL.String()))
		}
		logger.Warn("Slow query", fields...)
	}
	if err := registerTimedCallbacks(db, "ledger_slow_query", slow); err != nil {
		return err
	}

	logger.Info("Database tracing enabled", zap.Duration("slow_query_threshold", threshold))
	return nil
}

// registerTimedCallbacks stamps each statement before gorm runs it and calls
// observe afterwards with the elapsed time
func registerTimedCallbacks(db *gorm.DB, name string, observe func(tx *gorm.DB, operation string, elapsed time.Duration)) error {
	key := name + ":started_at"
	start := func(tx *gorm.DB) {
		tx.InstanceSet(key, time.Now())
	}
	finish := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(key)
			if !ok {
				return
			}
			if began, ok := v.(time.Time); ok {
				observe(tx, operation, time.Since(began))
			}
		}
	}

	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register(name+":before_create", start),
		cb.Create().After("gorm:create").Register(name+":after_create", finish("insert")),
		cb.Query().Before("gorm:query").Register(name+":before_query", start),
		cb.Query().After("gorm:query").Register(name+":after_query", finish("select")),
		cb.Update().Before("gorm:update").Register(name+":before_update", start),
		cb.Update().After("gorm:update").Register(name+":after_update", finish("update")),
		cb.Delete().Before("gorm:delete").Register(name+":before_delete", start),
		cb.Delete().After("gorm:delete").Register(name+":after_delete", finish("delete")),
		cb.Row().Before("gorm:row").Register(name+":before_row", start),
		cb.Row().After("gorm:row").Register(name+":after_row", finish("row")),
		cb.Raw().Before("gorm:raw").Register(name+":before_raw", start),
		cb.Raw().After("gorm:raw").Register(name+":after_raw", finish("raw")),
	)
}
