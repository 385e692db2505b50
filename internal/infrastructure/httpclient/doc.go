// Package httpclient is the control server's client for the sidecar's
// local HTTP API. Requests go through resty on a retryablehttp transport and
// are guarded by a resilience.Breaker so a dead sidecar fails fast.
package httpclient
