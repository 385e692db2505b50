//go:build unix && !linux

package sidecar

import (
	"os/exec"
	"syscall"
)

// setProcAttr puts the sidecar in its own process group. There is no
// parent-death signal outside Linux; the pid file covers crashed shells.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
