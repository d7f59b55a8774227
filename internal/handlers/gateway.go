package handlers

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/catalogsync/api/internal/domain"
	"github.com/catalogsync/api/internal/platform/httpx"
	"github.com/catalogsync/api/internal/platform/requestctx"
	"github.com/catalogsync/api/internal/services"
)

// Function names recorded on request log entries, one per gateway surface.
const (
	FunctionProducts            = "api-products"
	FunctionMarketplaceProducts = "api-marketplace-products"
	FunctionExpiringTokens      = "mercadolivre-expiring-tokens"
	FunctionGateway             = "api-gateway"
)

const (
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type, x-api-key"
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
)

var functionPrefixes = []struct {
	prefix   string
	function string
}{
	{"/products", FunctionProducts},
	{"/marketplace", FunctionMarketplaceProducts},
	{"/mercadolivre", FunctionExpiringTokens},
}

// CORSMiddleware stamps the CORS headers on every response and answers preflight requests
// before any authentication runs.
func CORSMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			if r.Method == http.MethodOptions {
				httpx.WriteEmpty(w, http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FunctionName labels requests served by a route group.
func FunctionName(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestctx.SetFunctionName(r.Context(), name)
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogOptions configures RequestLogMiddleware.
type RequestLogOptions struct {
	// SkipPaths are exact paths that never produce an entry (health checks and metric scrapes).
	SkipPaths []string
	// MaxBodyBytes bounds how much of the request body is buffered for the entry.
	MaxBodyBytes int
	// MaxResponseBytes bounds how much of the response is buffered for the entry.
	MaxResponseBytes int
	Clock            func() time.Time
}

// RequestLogMiddleware emits exactly one request log entry per request. The clock starts on
// arrival, before authentication, and stops after the handler chain returns.
func RequestLogMiddleware(logger services.RequestLogger, opts RequestLogOptions) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = services.DefaultMaxRequestBodyChars * utf8.UTFMax
	}
	maxResponse := opts.MaxResponseBytes
	if maxResponse <= 0 {
		maxResponse = services.DefaultMaxResponseSummaryChars * utf8.UTFMax
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			start := clock()

			call := &requestctx.Call{}
			ctx := requestctx.WithCall(r.Context(), call)
			body := captureRequestBody(r, maxBody)
			recorder := &capturingWriter{ResponseWriter: w, status: http.StatusOK, limit: maxResponse}

			defer func() {
				// Runs after recovery has written the 500, and also when a panic escapes it.
				rec := recover()
				status := recorder.status
				if rec != nil && !recorder.wroteHeader {
					status = http.StatusInternalServerError
				}
				logger.Log(ctx, domain.RequestLogEntry{
					FunctionName:    functionFor(call, r.URL.Path),
					Method:          r.Method,
					Path:            r.URL.Path,
					APIKeyID:        call.APIKeyID,
					UserID:          call.UserID,
					IPAddress:       clientIP(r),
					QueryParams:     flattenQuery(r),
					RequestBody:     body,
					StatusCode:      status,
					ResponseSummary: validPrefix(recorder.buf.Bytes()),
					ErrorMessage:    call.ErrorMessage,
					DurationMs:      clock().Sub(start).Milliseconds(),
					Timestamp:       start.UTC(),
				})
				if rec != nil {
					panic(rec)
				}
			}()

			next.ServeHTTP(recorder, r.WithContext(ctx))
		})
	}
}

func functionFor(call *requestctx.Call, path string) string {
	if call.FunctionName != "" {
		return call.FunctionName
	}
	for _, p := range functionPrefixes {
		if path == p.prefix || strings.HasPrefix(path, p.prefix+"/") {
			return p.function
		}
	}
	return FunctionGateway
}

// captureRequestBody buffers up to limit bytes of the body for the log entry and leaves the full
// body readable for the handler.
func captureRequestBody(r *http.Request, limit int) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, int64(limit)))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	if err != nil {
		return ""
	}
	return validPrefix(head)
}

// validPrefix drops a character cut in half by a capture limit and replaces any other invalid
// sequence, so the stored text is always valid UTF-8.
func validPrefix(b []byte) string {
	start := len(b) - 1
	for start > 0 && len(b)-start < utf8.UTFMax && !utf8.RuneStart(b[start]) {
		start--
	}
	if start >= 0 && !utf8.FullRune(b[start:]) {
		b = b[:start]
	}
	return strings.ToValidUTF8(string(b), "")
}

func flattenQuery(r *http.Request) map[string]string {
	values := r.URL.Query()
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			out[key] = vals[0]
		}
	}
	return out
}

func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

type capturingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	limit       int
	buf         bytes.Buffer
}

func (c *capturingWriter) WriteHeader(status int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *capturingWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	if remaining := c.limit - c.buf.Len(); remaining > 0 {
		if len(p) < remaining {
			remaining = len(p)
		}
		c.buf.Write(p[:remaining])
	}
	return c.ResponseWriter.Write(p)
}

// Flush lets streaming handlers keep working behind the recorder.
func (c *capturingWriter) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
