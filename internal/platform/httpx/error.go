package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/catalogsync/api/internal/platform/requestctx"
)

// InternalErrorMessage is the only message ever returned for unexpected failures.
const InternalErrorMessage = "Erro interno do servidor"

// Error is a failure rendered as `{success:false, error:<message>}`.
type Error struct {
	Status  int
	Message string
	Details map[string]any
}

// NewError constructs an Error, defaulting to 500.
func NewError(status int, message string) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Status:  status,
		Message: sanitize(message, 512),
	}
}

// Internal returns the generic 500 error.
func Internal() Error {
	return NewError(http.StatusInternalServerError, InternalErrorMessage)
}

// WithDetails attaches additional JSON-serialisable fields to the envelope.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	copyDetails := make(map[string]any, len(details))
	for k, v := range details {
		copyDetails[k] = v
	}
	e.Details = copyDetails
	return e
}

// WriteError writes the failure envelope and records the message for the request log.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	message := err.Message
	if message == "" {
		message = http.StatusText(status)
	}

	payload := map[string]any{
		"success": false,
		"error":   message,
	}
	for k, v := range err.Details {
		if k == "success" || k == "error" {
			continue
		}
		payload[k] = v
	}
	if requestID := sanitize(middleware.GetReqID(ctx), 80); requestID != "" {
		payload["requestId"] = requestID
	}

	requestctx.SetErrorMessage(ctx, message)
	writeJSON(w, status, payload)
}

func sanitize(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
