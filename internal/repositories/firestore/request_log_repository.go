package firestore

import (
	"context"
	"errors"
	"time"

	"github.com/catalogsync/api/internal/domain"
	pfirestore "github.com/catalogsync/api/internal/platform/firestore"
)

const requestLogsCollection = "apiRequestLogs"

// RequestLogRepository is the default request log sink.
type RequestLogRepository struct {
	coll *pfirestore.Collection[requestLogDocument]
}

type requestLogDocument struct {
	FunctionName    string            `firestore:"function_name"`
	Method          string            `firestore:"method"`
	Path            string            `firestore:"path"`
	APIKeyID        string            `firestore:"api_key_id,omitempty"`
	UserID          string            `firestore:"user_id,omitempty"`
	IPAddress       string            `firestore:"ip_address,omitempty"`
	QueryParams     map[string]string `firestore:"query_params,omitempty"`
	RequestBody     string            `firestore:"request_body,omitempty"`
	StatusCode      int               `firestore:"status_code"`
	ResponseSummary string            `firestore:"response_summary,omitempty"`
	ErrorMessage    string            `firestore:"error_message,omitempty"`
	DurationMs      int64             `firestore:"duration_ms"`
	Timestamp       time.Time         `firestore:"created_at"`
}

// NewRequestLogRepository constructs the Firestore request log sink.
func NewRequestLogRepository(provider *pfirestore.Provider) (*RequestLogRepository, error) {
	if provider == nil {
		return nil, errors.New("request log repository: firestore provider is required")
	}
	return &RequestLogRepository{coll: pfirestore.NewCollection[requestLogDocument](provider, requestLogsCollection)}, nil
}

// Append writes the entry once.
func (r *RequestLogRepository) Append(ctx context.Context, e domain.RequestLogEntry) error {
	return r.coll.Create(ctx, e.ID, requestLogDocument{
		FunctionName:    e.FunctionName,
		Method:          e.Method,
		Path:            e.Path,
		APIKeyID:        e.APIKeyID,
		UserID:          e.UserID,
		IPAddress:       e.IPAddress,
		QueryParams:     e.QueryParams,
		RequestBody:     e.RequestBody,
		StatusCode:      e.StatusCode,
		ResponseSummary: e.ResponseSummary,
		ErrorMessage:    e.ErrorMessage,
		DurationMs:      e.DurationMs,
		Timestamp:       e.Timestamp.UTC(),
	})
}
