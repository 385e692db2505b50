//go:build !linux && !darwin && !windows

package sidecar

import (
	"fmt"
	"runtime"
)

// InspectProcess is not implemented here; callers treat the process as
// unverifiable.
func InspectProcess(pid int) (ProcessInfo, error) {
	return ProcessInfo{}, fmt.Errorf("inspect %d: unsupported on %s", pid, runtime.GOOS)
}
