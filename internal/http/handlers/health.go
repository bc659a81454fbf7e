// Package handlers implements the HTTP endpoints: the health surface and the
// platform webhook. Handlers stay thin; everything stateful lives behind the
// injected collaborators.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luckyjet/go-prediction-backend/internal/storage"
)

// Occupancy reports the current entry count of one cache namespace.
type Occupancy interface {
	Len() int
}

// HealthHandler serves the liveness, health, and readiness probes.
type HealthHandler struct {
	Pool *storage.Pool
	// Caches maps a namespace name to its occupancy reporter.
	Caches map[string]Occupancy
	// PingTimeout bounds the storage round-trip in Health and Ready.
	PingTimeout time.Duration
}

// Live answers the bare liveness probe. No dependencies are touched.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Health reports storage connectivity, pool utilization, and per-namespace
// cache occupancy. Degraded storage yields 503 with the same body shape, so
// monitors can alert on either the status code or the payload.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := h.pingContext(c)
	defer cancel()

	dbStatus := "ok"
	code := http.StatusOK
	if err := h.Pool.Ping(ctx); err != nil {
		dbStatus = "unavailable"
		code = http.StatusServiceUnavailable
	}

	caches := make(gin.H, len(h.Caches))
	for name, occ := range h.Caches {
		caches[name] = occ.Len()
	}

	st := h.Pool.Stats()
	c.JSON(code, gin.H{
		"status":   dbStatus,
		"database": dbStatus,
		"pool": gin.H{
			"max_open": st.MaxOpen,
			"open":     st.Open,
			"idle":     st.Idle,
			"in_use":   st.InUse,
		},
		"caches": caches,
	})
}

// Ready answers 200 only when storage is reachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := h.pingContext(c)
	defer cancel()

	if err := h.Pool.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *HealthHandler) pingContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.PingTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), h.PingTimeout)
	}
	return c.Request.Context(), func() {}
}
