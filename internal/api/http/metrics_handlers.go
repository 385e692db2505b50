package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Metrics serves the Prometheus exposition format.
func (h *Handlers) Metrics(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// MetricsJSON returns a small JSON snapshot for the UI.
func (h *Handlers) MetricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"metrics": h.metrics.Snapshot(),
		"sidecar": h.status.Status(),
	})
}
