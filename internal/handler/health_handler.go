// internal/handler/health_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	Replica Pinger
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewHealthHandler creates a HealthHandler. replica may be nil when no remote
// copy is configured.
func NewHealthHandler(replica Pinger, timeout time.Duration, logger *zap.Logger) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{Replica: replica, Timeout: timeout, Logger: logger}
}

// Health always answers 200 while the process is serving.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Ready answers 503 when the replica store cannot be reached.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ready", "replica": "disabled"}
	code := http.StatusOK

	if h.Replica != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
		defer cancel()

		if err := h.Replica.Ping(ctx); err != nil {
			h.Logger.Warn("replica not reachable", zap.Error(err))
			status["status"] = "not ready"
			status["replica"] = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			status["replica"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
