package sidecar

import "time"

// ProcessInfo is what the operating system reports about a running process.
type ProcessInfo struct {
	// Exe is the executable path. On darwin only the short process name is
	// available.
	Exe       string
	StartedAt time.Time
}
