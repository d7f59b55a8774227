package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteData writes `{success:true, data:<data>}` with the given status.
func WriteData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{
		"success": true,
		"data":    data,
	})
}

// WritePage writes a collection envelope carrying pagination metadata.
func WritePage(w http.ResponseWriter, data any, pagination any) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"data":       data,
		"pagination": pagination,
	})
}

// WriteEmpty writes a bare status with no body, used for CORS preflight.
func WriteEmpty(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
