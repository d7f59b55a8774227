package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/catalogsync/api/internal/platform/observability"
)

// Open connects to Postgres with pooled connections and gorm's duplicate-key translation enabled.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	gormLogger := logger.New(observability.NewPrintfAdapter(log), logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// Ping checks connectivity for readiness checks.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Error satisfies repositories.RepositoryError for gorm failures.
type Error struct {
	op  string
	err error
}

func (e *Error) Error() string { return e.op + ": " + e.err.Error() }

func (e *Error) Unwrap() error { return e.err }

func (e *Error) IsNotFound() bool { return errors.Is(e.err, gorm.ErrRecordNotFound) }

func (e *Error) IsConflict() bool { return errors.Is(e.err, gorm.ErrDuplicatedKey) }

func (e *Error) IsUnavailable() bool {
	return errors.Is(e.err, context.DeadlineExceeded) || errors.Is(e.err, gorm.ErrInvalidDB)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{op: op, err: err}
}
