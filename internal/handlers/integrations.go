package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/catalogsync/api/internal/platform/httpx"
	"github.com/catalogsync/api/internal/services"
)

const defaultExpiryWindowMinutes = 60

// IntegrationHandlers serves the /mercadolivre integration endpoints.
type IntegrationHandlers struct {
	monitor services.TokenMonitorService
}

// NewIntegrationHandlers wires the token monitor into HTTP handlers.
func NewIntegrationHandlers(monitor services.TokenMonitorService) *IntegrationHandlers {
	return &IntegrationHandlers{monitor: monitor}
}

// Routes registers the integration endpoints on a router mounted at /mercadolivre.
func (h *IntegrationHandlers) Routes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/expiring-tokens", h.expiringTokens)
}

func (h *IntegrationHandlers) expiringTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	minutes := defaultExpiryWindowMinutes
	if raw := strings.TrimSpace(query.Get("minutes")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeBadRequest(ctx, w, "Parâmetro minutes deve ser um inteiro positivo")
			return
		}
		minutes = value
	}
	includeExpired, err := queryBool(query, "include_expired")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	tokens, err := h.monitor.ExpiringTokens(ctx, services.TokenExpiryQuery{
		Minutes:        minutes,
		IncludeExpired: includeExpired != nil && *includeExpired,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteData(w, http.StatusOK, tokens)
}
