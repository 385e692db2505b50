// Command shell runs the sidecar supervisor without a window. It is used in
// CI and for backend development where no webview is available.
//
// Usage:
//
//	shell [--mode development|production] [--port 5005] [--no-control]
//
// The launch mode comes from the build profile, then SIDECAR_MODE, then
// --mode; the last one set wins and production is the default. A startup
// failure is printed to stderr, raised as a desktop notification and ends
// the process with status 1.
package main
