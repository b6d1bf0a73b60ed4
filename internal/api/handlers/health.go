package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	ping   func() error
	logger *logrus.Logger
}

// NewHealthHandler creates a new health handler. ping reports whether the
// database is reachable.
func NewHealthHandler(ping func() error, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{ping: ping, logger: logger}
}

// ServeHTTP handles the health check endpoint
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, code := "healthy", http.StatusOK
	if h.ping != nil {
		if err := h.ping(); err != nil {
			h.logger.WithError(err).Warn("Health check failed")
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
