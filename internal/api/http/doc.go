// Package http contains the Gin handlers of the loopback control API:
// liveness, the ping stub, sidecar status, a proxied sidecar health check,
// launch history and metrics.
package http
