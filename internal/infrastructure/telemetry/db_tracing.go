package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const queryStartKey = "slow_query:start"

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include bind variables in spans; never in production
	SlowQueryThresh time.Duration
	DBName          string
}

// DefaultDBTracingConfig returns tracing off with a 200ms slow threshold
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBName:          "postgresql",
	}
}

// RegisterDBTracing installs otelgorm on db and tags slow statements on the
// active span. Row-lock waits on hot ledger accounts show up here first.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	after := slowQueryCallback(cfg.SlowQueryThresh)

	cb := db.Callback()
	regs := []struct {
		name  string
		apply func() error
	}{
		{"create", func() error {
			if err := cb.Create().Before("gorm:create").Register("slow_query:before_create", before); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("slow_query:after_create", after)
		}},
		{"query", func() error {
			if err := cb.Query().Before("gorm:query").Register("slow_query:before_query", before); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("slow_query:after_query", after)
		}},
		{"update", func() error {
			if err := cb.Update().Before("gorm:update").Register("slow_query:before_update", before); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("slow_query:after_update", after)
		}},
		{"raw", func() error {
			if err := cb.Raw().Before("gorm:raw").Register("slow_query:before_raw", before); err != nil {
				return err
			}
			return cb.Raw().After("gorm:raw").Register("slow_query:after_raw", after)
		}},
	}
	for _, r := range regs {
		if err := r.apply(); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func slowQueryCallback(threshold time.Duration) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		ctx := tx.Statement.Context
		if ctx == nil {
			return
		}
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		if tx.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
		}
		if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			RecordError(span, tx.Error)
		}
		v, ok := tx.InstanceGet(queryStartKey)
		if !ok || threshold <= 0 {
			return
		}
		start, _ := v.(time.Time)
		if elapsed := time.Since(start); elapsed > threshold {
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", threshold.Milliseconds()),
			))
		}
	}
}
