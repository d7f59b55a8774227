package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerContextKey contextKey = "github.com/catalogsync/api/internal/platform/requestctx/logger"
	traceContextKey  contextKey = "github.com/catalogsync/api/internal/platform/requestctx/trace"
	callContextKey   contextKey = "github.com/catalogsync/api/internal/platform/requestctx/call"
)

var noopLogger = zap.NewNop()

// TraceInfo captures trace metadata propagated through request context.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// Call accumulates what the gateway learns about a request while serving it. The request log
// middleware owns the value; downstream layers fill in fields as they become known.
type Call struct {
	FunctionName string
	APIKeyID     string
	UserID       string
	ErrorMessage string
}

// WithLogger stores the logger in context for downstream consumers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// Logger retrieves the zap logger from context or returns a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return noopLogger
	}
	if logger, ok := ctx.Value(loggerContextKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger exposes the shared noop logger instance.
func NoopLogger() *zap.Logger { return noopLogger }

// WithTrace stores the trace metadata on the context.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceContextKey, info)
}

// Trace retrieves the trace metadata from context when available.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceContextKey).(TraceInfo)
	return info, ok
}

// TraceID extracts the trace identifier from context when present.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithCall attaches a mutable call record to the context.
func WithCall(ctx context.Context, call *Call) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callContextKey, call)
}

// CallFrom returns the call record, or nil outside the gateway chain.
func CallFrom(ctx context.Context) *Call {
	if ctx == nil {
		return nil
	}
	call, _ := ctx.Value(callContextKey).(*Call)
	return call
}

// SetFunctionName records the logical function serving the request.
func SetFunctionName(ctx context.Context, name string) {
	if call := CallFrom(ctx); call != nil {
		call.FunctionName = name
	}
}

// SetCaller records the authenticated API key and its owner.
func SetCaller(ctx context.Context, apiKeyID, userID string) {
	if call := CallFrom(ctx); call != nil {
		call.APIKeyID = apiKeyID
		call.UserID = userID
	}
}

// SetErrorMessage records the user-facing error returned to the caller.
func SetErrorMessage(ctx context.Context, message string) {
	if call := CallFrom(ctx); call != nil {
		call.ErrorMessage = message
	}
}
