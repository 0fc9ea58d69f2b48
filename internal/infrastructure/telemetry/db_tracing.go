package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type queryStartKey struct{}

// DBTracingConfig holds configuration for GORM query spans.
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL keeps bound variables in db.statement. Development only.
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBName          string
}

// DefaultDBTracingConfig returns the default database tracing configuration
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBName:          "a2zsellr",
	}
}

// RegisterDBTracing installs the otelgorm plugin on db together with a
// callback pair that flags slow statements on the active span and in the
// log.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultDBTracingConfig().SlowQueryThresh
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	slow := &slowQueryCallbacks{threshold: cfg.SlowQueryThresh, logger: logger}
	if err := slow.register(db); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh))
	return nil
}

type slowQueryCallbacks struct {
	threshold time.Duration
	logger    *zap.Logger
}

func (s *slowQueryCallbacks) register(db *gorm.DB) error {
	cb := db.Callback()
	pairs := []struct {
		name   string
		before func() error
		after  func() error
	}{
		{"create",
			func() error { return cb.Create().Before("gorm:create").Register("slow_query:before_create", s.before) },
			func() error { return cb.Create().After("gorm:create").Register("slow_query:after_create", s.after) }},
		{"query",
			func() error { return cb.Query().Before("gorm:query").Register("slow_query:before_query", s.before) },
			func() error { return cb.Query().After("gorm:query").Register("slow_query:after_query", s.after) }},
		{"update",
			func() error { return cb.Update().Before("gorm:update").Register("slow_query:before_update", s.before) },
			func() error { return cb.Update().After("gorm:update").Register("slow_query:after_update", s.after) }},
		{"delete",
			func() error { return cb.Delete().Before("gorm:delete").Register("slow_query:before_delete", s.before) },
			func() error { return cb.Delete().After("gorm:delete").Register("slow_query:after_delete", s.after) }},
		{"raw",
			func() error { return cb.Raw().Before("gorm:raw").Register("slow_query:before_raw", s.before) },
			func() error { return cb.Raw().After("gorm:raw").Register("slow_query:after_raw", s.after) }},
	}
	for _, p := range pairs {
		if err := p.before(); err != nil {
			return err
		}
		if err := p.after(); err != nil {
			return err
		}
	}
	return nil
}

func (s *slowQueryCallbacks) before(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}
	db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
}

func (s *slowQueryCallbacks) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	if elapsed < s.threshold {
		return
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.duration_ms", elapsed.Milliseconds()),
		)
	}
	s.logger.Warn("Slow query",
		zap.String("table", db.Statement.Table),
		zap.Duration("duration", elapsed),
		zap.Int64("rows", db.RowsAffected))
}
