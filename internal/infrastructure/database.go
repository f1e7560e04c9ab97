package infrastructure

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codetrack/backend/internal/domain"
)

// Database wraps the GORM database connection with additional utilities
type Database struct {
	*gorm.DB
	config *DatabaseConfig
	logger *zap.Logger
}

// NewDatabase creates a new database connection with connection pooling
func NewDatabase(config *DatabaseConfig, zapLogger *zap.Logger) (*Database, error) {
	gormLogger := logger.New(
		&zapLogAdapter{zapLogger},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(config.DSN()), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true, // surface gorm.ErrDuplicatedKey on unique violations
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	zapLogger.Info("Database connection established",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("database", config.DBName),
		zap.Int("max_open_conns", config.MaxOpenConns),
	)

	return &Database{
		DB:     db,
		config: config,
		logger: zapLogger,
	}, nil
}

// AutoMigrate runs database migrations for all domain entities
func (d *Database) AutoMigrate() error {
	d.logger.Info("Running database migrations...")

	err := d.DB.AutoMigrate(
		&domain.User{},
		&domain.Problem{},
		&domain.SolvedDate{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("Database migrations completed successfully")
	return nil
}

const queryStartKey = "telemetry:query_start"

// RegisterMetrics installs gorm callbacks that record per-query durations.
// Safe to skip when telemetry is disabled.
func (d *Database) RegisterMetrics(metrics *TelemetryMetrics) error {
	if metrics == nil {
		return nil
	}

	before := func(db *gorm.DB) {
		db.InstanceSet(queryStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			v, ok := db.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			metrics.DBQueryDuration.Record(db.Statement.Context, time.Since(start).Seconds(),
				metric.WithAttributes(
					attribute.String("db.operation", operation),
					attribute.String("db.table", db.Statement.Table),
				),
			)
		}
	}

	cb := d.DB.Callback()
	for _, register := range []func() error{
		func() error { return cb.Query().Before("gorm:query").Register("telemetry:before_query", before) },
		func() error { return cb.Query().After("gorm:query").Register("telemetry:after_query", after("select")) },
		func() error { return cb.Create().Before("gorm:create").Register("telemetry:before_create", before) },
		func() error { return cb.Create().After("gorm:create").Register("telemetry:after_create", after("insert")) },
		func() error { return cb.Update().Before("gorm:update").Register("telemetry:before_update", before) },
		func() error { return cb.Update().After("gorm:update").Register("telemetry:after_update", after("update")) },
		func() error { return cb.Delete().Before("gorm:delete").Register("telemetry:before_delete", before) },
		func() error { return cb.Delete().After("gorm:delete").Register("telemetry:after_delete", after("delete")) },
	} {
		if err := register(); err != nil {
			return fmt.Errorf("failed to register query metrics callback: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy
func (d *Database) HealthCheck(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// zapLogAdapter adapts zap logger to GORM's logger interface
type zapLogAdapter struct {
	logger *zap.Logger
}

func (z *zapLogAdapter) Printf(format string, args ...interface{}) {
	z.logger.Sugar().Infof(format, args...)
}
