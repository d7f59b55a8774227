package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/catalogsync/api/internal/domain"
)

// requestLogRow maps the api_request_logs accounting table.
type requestLogRow struct {
	ID              string            `gorm:"primaryKey;type:varchar(26)"`
	FunctionName    string            `gorm:"type:varchar(64);index"`
	Method          string            `gorm:"type:varchar(10)"`
	Path            string            `gorm:"type:text"`
	APIKeyID        *string           `gorm:"type:varchar(128);index"`
	UserID          *string           `gorm:"type:varchar(128);index"`
	IPAddress       *string           `gorm:"type:varchar(64)"`
	QueryParams     map[string]string `gorm:"type:jsonb;serializer:json"`
	RequestBody     *string           `gorm:"type:text"`
	StatusCode      int
	ResponseSummary *string `gorm:"type:text"`
	ErrorMessage    *string `gorm:"type:text"`
	DurationMs      int64
	CreatedAt       time.Time `gorm:"index"`
}

func (requestLogRow) TableName() string { return "api_request_logs" }

// RequestLogRepository writes request logs to Postgres for billing-style accounting queries.
type RequestLogRepository struct {
	db *gorm.DB
}

// NewRequestLogRepository constructs the Postgres sink.
func NewRequestLogRepository(db *gorm.DB) (*RequestLogRepository, error) {
	if db == nil {
		return nil, errors.New("postgres request log repository: db is required")
	}
	return &RequestLogRepository{db: db}, nil
}

// Migrate creates or updates the api_request_logs table.
func (r *RequestLogRepository) Migrate(ctx context.Context) error {
	return wrap("api_request_logs.migrate", r.db.WithContext(ctx).AutoMigrate(&requestLogRow{}))
}

// Append inserts the entry once; a repeated ID is a conflict.
func (r *RequestLogRepository) Append(ctx context.Context, e domain.RequestLogEntry) error {
	row := requestLogRow{
		ID:              e.ID,
		FunctionName:    e.FunctionName,
		Method:          e.Method,
		Path:            e.Path,
		APIKeyID:        nullable(e.APIKeyID),
		UserID:          nullable(e.UserID),
		IPAddress:       nullable(e.IPAddress),
		QueryParams:     e.QueryParams,
		RequestBody:     nullable(e.RequestBody),
		StatusCode:      e.StatusCode,
		ResponseSummary: nullable(e.ResponseSummary),
		ErrorMessage:    nullable(e.ErrorMessage),
		DurationMs:      e.DurationMs,
		CreatedAt:       e.Timestamp.UTC(),
	}
	return wrap("api_request_logs.append", r.db.WithContext(ctx).Create(&row).Error)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
