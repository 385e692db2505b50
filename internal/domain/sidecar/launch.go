package sidecar

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultGracePeriod is used when LaunchOptions.GracePeriod is zero.
const DefaultGracePeriod = 5 * time.Second

// LaunchOptions configures Launch.
type LaunchOptions struct {
	// Logger receives lifecycle events and, under the "output" name, every
	// line the sidecar writes.
	Logger *zap.Logger
	// Tail retains recent output; may be nil.
	Tail        *Tail
	GracePeriod time.Duration
}

// Launch spawns the described process and returns its Handle. It does not
// wait for the sidecar to become ready.
func Launch(d Descriptor, opts LaunchOptions) (*Handle, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	d = d.Clone()
	cmd := exec.Command(d.Executable(), d.Args...)
	cmd.Dir = d.Dir
	cmd.Env = append(os.Environ(), d.Env...)
	cmd.WaitDelay = grace

	output := logger.Named("output")
	stdout := newLineWriter(StreamStdout, opts.Tail, output, zapcore.InfoLevel)
	stderr := newLineWriter(StreamStderr, opts.Tail, output, zapcore.WarnLevel)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	setProcAttr(cmd)

	// Pdeathsig is tied to the spawning thread.
	runtime.LockOSThread()
	err := cmd.Start()
	runtime.UnlockOSThread()

	if err != nil {
		return nil, &LaunchError{Op: "launch", Program: d.Executable(), Kind: classifyStartError(d, err), Err: err}
	}

	h := newHandle(d, cmd, grace, logger, []*lineWriter{stdout, stderr})
	go h.waitLoop()

	logger.Info("sidecar launched",
		zap.Int("pid", h.PID()),
		zap.String("program", d.Executable()),
		zap.Strings("args", d.Args),
		zap.String("dir", d.Dir),
		zap.Stringer("mode", d.Mode),
	)
	return h, nil
}

// classifyStartError maps a spawn error to its kind. Once Locate has vouched
// for the executable, any failure to start it, including a missing loader or
// interpreter, means a broken installation rather than a missing sidecar.
func classifyStartError(d Descriptor, err error) error {
	if d.Path != "" {
		return ErrSpawnFailed
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return ErrExecutableNotFound
	}
	return ErrSpawnFailed
}
