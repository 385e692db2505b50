// Package server assembles the loopback control server: middleware, the
// control API routes and the log stream, behind an http.Server that the
// application state container shuts down on exit.
package server
