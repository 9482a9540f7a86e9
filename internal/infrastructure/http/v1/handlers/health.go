package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"club19/internal/infrastructure/storage/postgres"
)

// HealthHandler serves the liveness probe.
type HealthHandler struct {
	pool *postgres.Pool
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(pool *postgres.Pool) *HealthHandler {
	return &HealthHandler{pool: pool}
}

// Healthz reports process liveness and database reachability.
// GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	status := "ok"
	code := http.StatusOK

	if h.pool != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.pool.Ping(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status": status,
		"time":   time.Now().UTC(),
	})
}
