//go:build unix

package sidecar

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// terminateGroup sends SIGTERM to the sidecar's process group.
func terminateGroup(p *os.Process, pgid int) error {
	return signalGroup(p, pgid, unix.SIGTERM)
}

// killGroup sends SIGKILL to the sidecar's process group.
func killGroup(p *os.Process, pgid int) error {
	return signalGroup(p, pgid, unix.SIGKILL)
}

func signalGroup(p *os.Process, pgid int, sig syscall.Signal) error {
	if pgid > 0 {
		err := unix.Kill(-pgid, sig)
		if err == nil || err != unix.EPERM {
			return err
		}
	}
	return p.Signal(sig)
}

// GroupAlive reports whether any process in the group still exists.
func GroupAlive(pgid int) bool {
	if pgid <= 0 {
		return false
	}
	err := unix.Kill(-pgid, 0)
	return err == nil || err == unix.EPERM
}

// KillGroup forcibly terminates a process group left by an earlier run.
func KillGroup(pgid int) error {
	if pgid <= 0 {
		return nil
	}
	if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return err
	}
	return nil
}
