package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/catalogsync/api/internal/platform/auth"
	"github.com/catalogsync/api/internal/platform/httpx"
	"github.com/catalogsync/api/internal/platform/pagination"
	"github.com/catalogsync/api/internal/platform/requestctx"
	"github.com/catalogsync/api/internal/platform/validation"
	"github.com/catalogsync/api/internal/services"
)

const maxRequestBodyBytes = 1 << 20

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxRequestBodyBytes
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeBody reads and decodes a JSON object, writing the 400 envelope on failure. When dst
// carries validate tags it is checked as well.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxRequestBodyBytes)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError(http.StatusRequestEntityTooLarge, "Corpo da requisição excede o tamanho máximo"))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError(http.StatusBadRequest, "Corpo da requisição é obrigatório"))
		default:
			httpx.WriteError(ctx, w, httpx.NewError(http.StatusBadRequest, "Não foi possível ler o corpo da requisição"))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError(http.StatusBadRequest, jsonErrorMessage(err)))
		return false
	}
	if err := validation.Struct(dst); err != nil {
		var vErr *validation.Error
		if errors.As(err, &vErr) {
			httpx.WriteError(ctx, w, httpx.NewError(http.StatusBadRequest, vErr.Error()))
			return false
		}
		requestctx.Logger(ctx).Error("payload validation failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.Internal())
		return false
	}
	return true
}

// decodeOptionalBody behaves like decodeBody but accepts an empty body, leaving dst untouched.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return true
	}
	data, err := readLimitedBody(r, maxRequestBodyBytes)
	if errors.Is(err, errEmptyBody) {
		return true
	}
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(r.Context(), w, httpx.NewError(http.StatusRequestEntityTooLarge, "Corpo da requisição excede o tamanho máximo"))
		} else {
			writeBadRequest(r.Context(), w, "Não foi possível ler o corpo da requisição")
		}
		return false
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return decodeBody(w, r, dst)
}

func jsonErrorMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("Campo %s possui tipo inválido", typeErr.Field)
	}
	return "JSON inválido no corpo da requisição"
}

// writeServiceError maps classified service errors onto the HTTP taxonomy. Anything
// unclassified is logged and reported as the generic 500.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	message := services.Message(err)
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError(http.StatusBadRequest, message))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError(http.StatusNotFound, message))
	case errors.Is(err, services.ErrConflict):
		httpx.WriteError(ctx, w, httpx.NewError(http.StatusConflict, message))
	default:
		requestctx.Logger(ctx).Error("request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.Internal())
	}
}

func writeBadRequest(ctx context.Context, w http.ResponseWriter, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(http.StatusBadRequest, message))
}

// callerID returns the owner of the API key serving the request.
func callerID(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		return identity.OwnerUserID
	}
	return ""
}

func parsePagination(w http.ResponseWriter, r *http.Request) (pagination.Params, bool) {
	params, err := pagination.Parse(r.URL.Query(), pagination.Options{})
	if err != nil {
		switch {
		case errors.Is(err, pagination.ErrInvalidLimit):
			writeBadRequest(r.Context(), w, "Parâmetro limit deve ser um inteiro positivo")
		default:
			writeBadRequest(r.Context(), w, "Parâmetro offset deve ser um inteiro não negativo")
		}
		return pagination.Params{}, false
	}
	return params, true
}

func queryBool(values url.Values, key string) (*bool, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return nil, fmt.Errorf("Parâmetro %s deve ser true ou false", key)
	}
	return &v, nil
}

func queryFloat(values url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("Parâmetro %s deve ser um número não negativo", key)
	}
	return &v, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
