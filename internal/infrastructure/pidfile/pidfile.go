// Package pidfile records the running sidecar in sidecar.json so the next
// start can find and kill a process group orphaned by a crashed shell.
package pidfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Record is the pid file content.
type Record struct {
	PID       int       `json:"pid"`
	Program   string    `json:"program"`
	Path      string    `json:"path,omitempty"`
	Mode      string    `json:"mode"`
	RunID     string    `json:"run_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Identity is what the operating system reports about a live process.
type Identity struct {
	// Exe is the executable path, or only the process name on platforms
	// that report no more.
	Exe       string
	StartedAt time.Time
}

// startSlack absorbs the coarse clocks behind OS process start times.
const startSlack = 2 * time.Second

// Matches reports whether id plausibly describes the process rec was
// written for: same executable, started no later than recorded.
func (rec Record) Matches(id Identity) bool {
	if rec.Path == "" || id.Exe == "" || id.StartedAt.IsZero() || rec.StartedAt.IsZero() {
		return false
	}
	if id.StartedAt.After(rec.StartedAt.Add(startSlack)) {
		return false
	}
	want := resolve(rec.Path)
	if !filepath.IsAbs(id.Exe) {
		return strings.HasPrefix(filepath.Base(want), id.Exe)
	}
	got := resolve(id.Exe)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(want, got)
	}
	return want == got
}

func resolve(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}

// Write atomically replaces the pid file at path.
func Write(path string, rec Record) error {
	data, err := sonic.ConfigDefault.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("pidfile: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".sidecar-*.json")
	if err != nil {
		return fmt.Errorf("pidfile: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("pidfile: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("pidfile: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("pidfile: %w", err)
	}
	return nil
}

// Read loads the pid file. A missing file yields an error matching fs.ErrNotExist.
func Read(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := sonic.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("pidfile: decode %s: %w", path, err)
	}
	if rec.PID <= 0 {
		return Record{}, fmt.Errorf("pidfile: %s: invalid pid %d", path, rec.PID)
	}
	return rec, nil
}

// Remove deletes the pid file; a missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("pidfile: %w", err)
	}
	return nil
}

// Reaper kills process groups left behind by a previous run.
type Reaper struct {
	Alive func(pid int) bool
	Kill  func(pid int) error
	// Identify inspects a live process. Without it, or when it fails, no
	// process is killed.
	Identify func(pid int) (Identity, error)
	Logger   *zap.Logger
}

// Reap inspects the pid file at path. When it names a live process group
// whose leader is still the recorded sidecar, that group is killed. The file
// is removed unless the kill fails. It reports whether a process was killed.
func (r Reaper) Reap(path string) (bool, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rec, err := Read(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		logger.Warn("Discarding unreadable pid file", zap.String("path", path), zap.Error(err))
		return false, Remove(path)
	}

	if !r.Alive(rec.PID) {
		logger.Debug("Stale pid file, process already gone", zap.Int("pid", rec.PID))
		return false, Remove(path)
	}

	if !r.verify(rec, logger) {
		return false, Remove(path)
	}

	logger.Warn("Reaping orphaned sidecar",
		zap.Int("pid", rec.PID),
		zap.String("program", rec.Program),
		zap.String("run_id", rec.RunID),
		zap.Time("started_at", rec.StartedAt))
	if err := r.Kill(rec.PID); err != nil {
		return false, fmt.Errorf("pidfile: kill orphan %d: %w", rec.PID, err)
	}
	return true, Remove(path)
}

// verify reports whether the live process rec.PID is the one rec describes.
// After a reboot or pid wraparound the id can belong to anything.
func (r Reaper) verify(rec Record, logger *zap.Logger) bool {
	if r.Identify == nil {
		logger.Warn("Cannot verify pid file owner, leaving process running", zap.Int("pid", rec.PID))
		return false
	}
	id, err := r.Identify(rec.PID)
	if err != nil {
		logger.Warn("Cannot verify pid file owner, leaving process running",
			zap.Int("pid", rec.PID), zap.Error(err))
		return false
	}
	if !rec.Matches(id) {
		logger.Warn("Pid file names another process, leaving it running",
			zap.Int("pid", rec.PID),
			zap.String("recorded_path", rec.Path),
			zap.String("actual_exe", id.Exe),
			zap.Time("recorded_start", rec.StartedAt),
			zap.Time("actual_start", id.StartedAt))
		return false
	}
	return true
}
