//go:build darwin

package sidecar

import (
	"bytes"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// InspectProcess reports the short name and start time of pid.
func InspectProcess(pid int) (ProcessInfo, error) {
	kp, err := unix.SysctlKinfoProc("kern.proc.pid", pid)
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("inspect %d: %w", pid, err)
	}
	if int(kp.Proc.P_pid) != pid {
		return ProcessInfo{}, fmt.Errorf("inspect %d: %w", pid, unix.ESRCH)
	}
	comm := kp.Proc.P_comm[:]
	if i := bytes.IndexByte(comm, 0); i >= 0 {
		comm = comm[:i]
	}
	sec, nsec := kp.Proc.P_starttime.Unix()
	return ProcessInfo{
		Exe:       string(comm),
		StartedAt: time.Unix(sec, nsec),
	}, nil
}
