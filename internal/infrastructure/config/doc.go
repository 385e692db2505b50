// Package config provides 12-factor configuration for the desktop shell.
//
// Configuration is loaded from environment variables with defaults that
// match the bundled sidecar. Command line flags in cmd/ override selected
// values after loading.
//
// Configuration Sections:
//   - Sidecar: launch mode override, bundled name, dev script, port, grace period
//   - Readiness: health probe timeout and backoff bounds
//   - Storage: application data directory
//   - Server: loopback control server
//   - Logging: log level and output format
//   - RateLimit: per-IP limits on the control server
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Println("sidecar at", cfg.SidecarURL())
//
// Environment Variables:
//   - SIDECAR_MODE, SIDECAR_NAME, SIDECAR_SCRIPT, SIDECAR_PROJECT_DIR, SIDECAR_BUNDLE_DIR
//   - SIDECAR_HOST, FLASK_PORT, SIDECAR_GRACE_PERIOD, SIDECAR_HEALTH_PATH, SIDECAR_TAIL_LINES
//   - SIDECAR_READY_ENABLED, SIDECAR_READY_REQUIRED, SIDECAR_READY_TIMEOUT,
//     SIDECAR_READY_MIN_BACKOFF, SIDECAR_READY_MAX_BACKOFF
//   - APP_DATA_DIR
//   - CONTROL_HOST, CONTROL_PORT, CONTROL_ENABLED
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
