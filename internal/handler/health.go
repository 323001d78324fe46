package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/arnaud-morvan/v6-api/internal/httputil"
)

// Pinger checks a backing store (the pgx pool satisfies it)
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and database reachability
type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// HealthCheck is a simple health check endpoint
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", "error", err)
		httputil.RespondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"time":   time.Now(),
		})
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now(),
	})
}
