package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bomos/shell/internal/domain/supervisor"
	"github.com/bomos/shell/internal/infrastructure/resilience"
	"github.com/gin-gonic/gin"
)

const maxRuns = 200

// SidecarStatus returns the supervisor status
func (h *Handlers) SidecarStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Status())
}

// SidecarHealth proxies the sidecar's own health endpoint.
func (h *Handlers) SidecarHealth(c *gin.Context) {
	st := h.status.Status()
	if st.Phase != supervisor.PhaseRunning.String() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "sidecar not running",
			"phase": st.Phase,
		})
		return
	}
	if h.health == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "health proxy disabled"})
		return
	}

	result, err := h.health.Health(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   err.Error(),
			"breaker": resilience.StateOpen.String(),
		})
	default:
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  err.Error(),
			"health": result,
		})
	}
}

// SidecarRuns lists launch history, newest first. Query: limit (default 20).
func (h *Handlers) SidecarRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	limit = min(limit, maxRuns)

	runs, err := h.runs.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}
