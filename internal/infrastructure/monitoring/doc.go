/*
Package monitoring provides Prometheus metrics for the shell and its sidecar.

# Overview

Every Metrics value owns a private registry, so tests and the two host
binaries never collide on the global default registry.

# Metrics

- shell_http_requests_total, shell_http_request_duration_seconds
- sidecar_launches_total{mode,outcome}
- sidecar_phase, sidecar_up
- sidecar_readiness_seconds{result}, sidecar_probe_attempts_total
- sidecar_shutdown_seconds
- sidecar_directory_prep_failures_total, sidecar_orphans_reaped_total
- shell_ws_connections, shell_uptime_seconds

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics.RecordShutdown)
	_ = handle.Shutdown(ctx)
	timer.Stop()
*/
package monitoring
