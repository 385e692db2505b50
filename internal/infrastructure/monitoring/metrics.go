package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Launch outcomes recorded in sidecar_launches_total.
const (
	OutcomeStarted  = "started"
	OutcomeSkipped  = "skipped"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "spawn_failed"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Sidecar metrics
	Launches          *prometheus.CounterVec
	Phase             prometheus.Gauge
	Up                prometheus.Gauge
	ReadinessDuration *prometheus.HistogramVec
	ProbeAttempts     prometheus.Counter
	ShutdownDuration  prometheus.Histogram
	DirPrepFailures   prometheus.Counter
	OrphansReaped     prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON status endpoint.
type Snapshot struct {
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	Launches      int64   `json:"launches"`
	ProbeAttempts int64   `json:"probe_attempts"`
	LastReadiness float64 `json:"last_readiness_seconds"`
}

// NewMetrics creates a collector backed by its own registry, so several
// instances can coexist in one process (tests, two hosts).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shell_http_requests_total",
				Help: "Total number of control server requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shell_http_request_duration_seconds",
				Help:    "Control server request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "path"},
		),

		Launches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_launches_total",
				Help: "Sidecar launch attempts by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		Phase: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sidecar_phase",
				Help: "Current supervisor phase (0 uninitialized .. 6 failed)",
			},
		),
		Up: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sidecar_up",
				Help: "1 while the sidecar process is running",
			},
		),
		ReadinessDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidecar_readiness_seconds",
				Help:    "Time from spawn until the health endpoint answered",
				Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"result"},
		),
		ProbeAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sidecar_probe_attempts_total",
				Help: "Health probe requests sent to the sidecar",
			},
		),
		ShutdownDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sidecar_shutdown_seconds",
				Help:    "Time taken to stop the sidecar",
				Buckets: []float64{.01, .05, .1, .5, 1, 2, 5, 10},
			},
		),
		DirPrepFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sidecar_directory_prep_failures_total",
				Help: "Application data directory creation failures",
			},
		),
		OrphansReaped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sidecar_orphans_reaped_total",
				Help: "Sidecar processes left by a previous run and killed at startup",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "shell_ws_connections",
				Help: "Number of active log stream connections",
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "shell_uptime_seconds",
			Help: "Shell uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records a control server request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordLaunch records a launch attempt outcome
func (m *Metrics) RecordLaunch(mode, outcome string) {
	m.Launches.WithLabelValues(mode, outcome).Inc()
	m.mu.Lock()
	m.snapshot.Launches++
	m.mu.Unlock()
}

// SetPhase publishes the supervisor phase
func (m *Metrics) SetPhase(phase int) {
	m.Phase.Set(float64(phase))
}

// SetUp marks the sidecar process as running or not
func (m *Metrics) SetUp(up bool) {
	if up {
		m.Up.Set(1)
		return
	}
	m.Up.Set(0)
}

// RecordReadiness records the probe result and elapsed time
func (m *Metrics) RecordReadiness(ready bool, duration time.Duration) {
	result := "ready"
	if !ready {
		result = "timeout"
	}
	m.ReadinessDuration.WithLabelValues(result).Observe(duration.Seconds())
	m.mu.Lock()
	m.snapshot.LastReadiness = duration.Seconds()
	m.mu.Unlock()
}

// IncProbeAttempts counts one health probe request
func (m *Metrics) IncProbeAttempts() {
	m.ProbeAttempts.Inc()
	m.mu.Lock()
	m.snapshot.ProbeAttempts++
	m.mu.Unlock()
}

// RecordShutdown records how long stopping the sidecar took
func (m *Metrics) RecordShutdown(duration time.Duration) {
	m.ShutdownDuration.Observe(duration.Seconds())
}

// IncDirPrepFailures counts a data directory creation failure
func (m *Metrics) IncDirPrepFailures() {
	m.DirPrepFailures.Inc()
}

// IncOrphansReaped counts a reaped leftover sidecar
func (m *Metrics) IncOrphansReaped() {
	m.OrphansReaped.Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Snapshot returns a copy of the JSON-friendly counters
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
