//go:build windows

package sidecar

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows"
)

// InspectProcess reports the image path and creation time of pid.
func InspectProcess(pid int) (ProcessInfo, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("inspect %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return ProcessInfo{}, fmt.Errorf("inspect %d: image name: %w", pid, err)
	}

	var created, exited, kernel, user windows.Filetime
	if err := windows.GetProcessTimes(h, &created, &exited, &kernel, &user); err != nil {
		return ProcessInfo{}, fmt.Errorf("inspect %d: process times: %w", pid, err)
	}
	return ProcessInfo{
		Exe:       windows.UTF16ToString(buf[:size]),
		StartedAt: time.Unix(0, created.Nanoseconds()),
	}, nil
}
