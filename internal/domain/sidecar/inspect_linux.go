//go:build linux

package sidecar

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// clockTicks is USER_HZ, fixed at 100 for the /proc ABI on every Linux port.
const clockTicks = 100

// InspectProcess reports the executable and start time of pid.
func InspectProcess(pid int) (ProcessInfo, error) {
	exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("inspect %d: %w", pid, err)
	}
	started, err := processStart(pid)
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("inspect %d: %w", pid, err)
	}
	return ProcessInfo{
		Exe:       strings.TrimSuffix(exe, " (deleted)"),
		StartedAt: started,
	}, nil
}

func processStart(pid int) (time.Time, error) {
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return time.Time{}, err
	}
	// The command name may contain spaces and parentheses; fields resume
	// after the last ')'.
	end := bytes.LastIndexByte(stat, ')')
	if end < 0 {
		return time.Time{}, fmt.Errorf("malformed /proc/%d/stat", pid)
	}
	fields := strings.Fields(string(stat[end+1:]))
	// starttime is field 22; fields[0] is field 3.
	const startField = 22 - 3
	if len(fields) <= startField {
		return time.Time{}, fmt.Errorf("short /proc/%d/stat", pid)
	}
	ticks, err := strconv.ParseUint(fields[startField], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse starttime: %w", err)
	}

	boot, err := bootTime()
	if err != nil {
		return time.Time{}, err
	}
	since := time.Duration(ticks) * time.Second / clockTicks
	return boot.Add(since), nil
}

func bootTime() (time.Time, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if v, ok := strings.CutPrefix(sc.Text(), "btime "); ok {
			sec, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return time.Time{}, fmt.Errorf("parse btime: %w", err)
			}
			return time.Unix(sec, 0), nil
		}
	}
	if err := sc.Err(); err != nil {
		return time.Time{}, err
	}
	return time.Time{}, fmt.Errorf("btime missing from /proc/stat")
}
