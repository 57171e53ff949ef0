package handlers

import (
	"encoding/json"
	"net/http"
)

// HealthHandler reports service liveness.
type HealthHandler struct {
	env string
}

// NewHealthHandler creates a health check handler.
func NewHealthHandler(env string) *HealthHandler {
	return &HealthHandler{env: env}
}

// Check is the HTTP handler for GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "frontdesk",
		"env":     h.env,
	})
}
