package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/repositories"
)

const (
	// DefaultMaxRequestBodyChars bounds the stored request body.
	DefaultMaxRequestBodyChars = 2000
	// DefaultMaxResponseSummaryChars bounds the stored response summary.
	DefaultMaxResponseSummaryChars = 500
)

// RequestLogMetrics counts request log writes. *metrics.Registry satisfies it.
type RequestLogMetrics interface {
	RequestLogWrite(ok bool)
}

// RequestLoggerDeps bundles collaborators required by the request logger.
type RequestLoggerDeps struct {
	Repository       repositories.RequestLogRepository
	Background       *BackgroundTasks
	Metrics          RequestLogMetrics
	Logger           *zap.Logger
	MaxBodyChars     int
	MaxResponseChars int
	IDGen            func() string
}

type requestLogger struct {
	repo             repositories.RequestLogRepository
	background       *BackgroundTasks
	metrics          RequestLogMetrics
	logger           *zap.Logger
	maxBodyChars     int
	maxResponseChars int
	newID            func() string
}

var _ RequestLogger = (*requestLogger)(nil)

// NewRequestLogger constructs the fire-and-forget request log writer.
func NewRequestLogger(deps RequestLoggerDeps) (RequestLogger, error) {
	if deps.Repository == nil {
		return nil, errors.New("request logger: repository is required")
	}
	background := deps.Background
	if background == nil {
		background = NewBackgroundTasks(0)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBody := deps.MaxBodyChars
	if maxBody <= 0 {
		maxBody = DefaultMaxRequestBodyChars
	}
	maxResponse := deps.MaxResponseChars
	if maxResponse <= 0 {
		maxResponse = DefaultMaxResponseSummaryChars
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &requestLogger{
		repo:             deps.Repository,
		background:       background,
		metrics:          deps.Metrics,
		logger:           logger.Named("request_log"),
		maxBodyChars:     maxBody,
		maxResponseChars: maxResponse,
		newID:            idGen,
	}, nil
}

// Log schedules the write and returns immediately.
func (l *requestLogger) Log(ctx context.Context, entry domain.RequestLogEntry) {
	if entry.ID == "" {
		entry.ID = l.newID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.DurationMs < 0 {
		entry.DurationMs = 0
	}
	entry.RequestBody = truncateChars(entry.RequestBody, l.maxBodyChars)
	entry.ResponseSummary = truncateChars(entry.ResponseSummary, l.maxResponseChars)

	l.background.Go(ctx, func(ctx context.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				l.logger.Error("request log write panicked", zap.Any("panic", rec))
			}
		}()
		err := l.repo.Append(ctx, entry)
		if l.metrics != nil {
			l.metrics.RequestLogWrite(err == nil)
		}
		if err != nil {
			l.logger.Warn("request log write failed",
				zap.String("function", entry.FunctionName),
				zap.String("path", entry.Path),
				zap.Int("status", entry.StatusCode),
				zap.Error(err),
			)
		}
	})
}

// Close waits for pending writes.
func (l *requestLogger) Close(ctx context.Context) error {
	return l.background.Wait(ctx)
}

func truncateChars(value string, limit int) string {
	value = strings.ToValidUTF8(value, "")
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}
