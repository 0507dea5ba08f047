package handlers

import (
	"context"
	"net/http"
	"time"

	"companion_gateway/internal/cache"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthHandler serves the probes. These bypass the envelope: orchestrators
// read the HTTP status, not a body schema.
type HealthHandler struct {
	db      *pgxpool.Pool
	cache   *cache.Client
	version string
}

func NewHealthHandler(db *pgxpool.Pool, c *cache.Client, version string) *HealthHandler {
	return &HealthHandler{db: db, cache: c, version: version}
}

// Liveness only proves the process is serving.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Readiness checks the store and cache with short timeouts.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "store": err.Error()})
		return
	}
	if err := h.cache.Redis().Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "cache": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Health reports version plus dependency status in one body.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{"store": "ok", "cache": "ok"}
	if err := h.db.Ping(ctx); err != nil {
		deps["store"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.cache.Redis().Ping(ctx).Err(); err != nil {
		deps["cache"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"version": h.version, "deps": deps})
}
