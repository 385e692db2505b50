package http

import (
	"context"
	"net/http"
	"time"

	"github.com/bomos/shell/internal/domain/supervisor"
	"github.com/bomos/shell/internal/infrastructure/httpclient"
	"github.com/bomos/shell/internal/infrastructure/journal"
	"github.com/bomos/shell/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
)

// Version is reported by the root endpoint.
const Version = "0.1.0"

// StatusSource reports the supervisor state.
type StatusSource interface {
	Status() supervisor.Status
}

// RunLister reads launch history.
type RunLister interface {
	List(ctx context.Context, limit int) ([]journal.Run, error)
}

// HealthChecker calls the sidecar's health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) (*httpclient.Health, error)
}

// Handlers serves the control API. runs and health may be nil.
type Handlers struct {
	status  StatusSource
	runs    RunLister
	health  HealthChecker
	metrics *monitoring.Metrics
	started time.Time
}

// NewHandlers creates the handler set
func NewHandlers(status StatusSource, runs RunLister, health HealthChecker, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		status:  status,
		runs:    runs,
		health:  health,
		metrics: metrics,
		started: time.Now(),
	}
}

// Root handles the root endpoint
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "bomos shell",
		"version": Version,
	})
}

// Health reports the control server's own health with a sidecar summary.
// It answers 200 even when the sidecar is down.
func (h *Handlers) Health(c *gin.Context) {
	st := h.status.Status()
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(h.started).Round(time.Second).String(),
		"sidecar": gin.H{
			"phase": st.Phase,
			"mode":  st.Mode,
			"pid":   st.PID,
			"ready": st.Ready,
		},
	})
}

// Ping answers "pong". It does not depend on the sidecar.
func (h *Handlers) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}
