package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsolated(t *testing.T) {
	// Two collectors must not panic on duplicate registration.
	a := NewMetrics()
	b := NewMetrics()

	a.RecordLaunch("development", OutcomeStarted)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Launches.WithLabelValues("development", OutcomeStarted)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Launches.WithLabelValues("development", OutcomeStarted)))
}

func TestSidecarGauges(t *testing.T) {
	m := NewMetrics()

	m.SetPhase(4)
	m.SetUp(true)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Phase))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Up))

	m.SetUp(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Up))
}

func TestSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordHTTPRequest("GET", "/ping", "200", time.Millisecond)
	m.RecordHTTPRequest("GET", "/sidecar/health", "503", time.Millisecond)
	m.IncProbeAttempts()
	m.IncProbeAttempts()
	m.RecordReadiness(true, 1500*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.Equal(t, int64(2), snap.ProbeAttempts)
	assert.InDelta(t, 1.5, snap.LastReadiness, 0.001)
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/ping", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "shell_http_requests_total"))
	assert.True(t, strings.Contains(body, "shell_uptime_seconds"))
}

func TestTimer(t *testing.T) {
	var got time.Duration
	timer := NewTimer(func(d time.Duration) { got = d })
	time.Sleep(5 * time.Millisecond)

	d := timer.Stop()
	assert.Equal(t, d, got)
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
}
