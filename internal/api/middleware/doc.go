// Package middleware provides the HTTP middleware for the loopback control server.
//
// Middleware stack includes:
//   - RequestID: X-Request-ID propagation
//   - Recovery: Panic recovery with a JSON 500 response
//   - Logger: Request logging through zap
//   - CORS: Origins limited to the Wails webview and loopback hosts
//   - RateLimit: Per-IP token bucket with idle client cleanup
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Logger(logger), middleware.Recovery(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
