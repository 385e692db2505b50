package sidecar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle state of a launched sidecar process.
type State int32

const (
	// StateRunning indicates the process has started and not exited.
	StateRunning State = iota
	// StateStopping indicates Shutdown is in progress.
	StateStopping
	// StateExited indicates the process exited on its own or after SIGTERM.
	StateExited
	// StateKilled indicates the process was killed by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// killWait bounds how long Shutdown waits after a forced kill.
const killWait = 2 * time.Second

// View is the read-only face of a Handle handed to components that may
// observe the sidecar but must not control it.
type View interface {
	PID() int
	State() State
	Started() time.Time
	Done() <-chan struct{}
	ExitCode() int
	Descriptor() Descriptor
}

// readOnlyView hides everything but View, so holders cannot reach Shutdown
// or Close by type assertion.
type readOnlyView struct{ View }

// Handle owns a running sidecar process. It is safe for concurrent use.
// Only the owner of the Handle may call Shutdown.
type Handle struct {
	desc    Descriptor
	cmd     *exec.Cmd
	pgid    int
	started time.Time
	grace   time.Duration
	logger  *zap.Logger
	writers []*lineWriter

	done     chan struct{}
	state    atomic.Int32
	exitCode atomic.Int32

	mu      sync.RWMutex
	exitErr error

	waitOnce     sync.Once
	shutdownOnce atomic.Bool
}

func newHandle(d Descriptor, cmd *exec.Cmd, grace time.Duration, logger *zap.Logger, writers []*lineWriter) *Handle {
	h := &Handle{
		desc:    d,
		cmd:     cmd,
		pgid:    cmd.Process.Pid,
		started: time.Now(),
		grace:   grace,
		logger:  logger,
		writers: writers,
		done:    make(chan struct{}),
	}
	h.state.Store(int32(StateRunning))
	h.exitCode.Store(-1)
	return h
}

// View returns a read-only view of h for handing out to observers.
func (h *Handle) View() View {
	return readOnlyView{h}
}

// PID returns the OS process ID.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// State returns the current process state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Started returns the spawn time.
func (h *Handle) Started() time.Time {
	return h.started
}

// Done returns a channel that is closed when the process exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitCode returns the exit code, or -1 while running.
func (h *Handle) ExitCode() int {
	return int(h.exitCode.Load())
}

// ExitError returns the error from waiting on the process, if any.
func (h *Handle) ExitError() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.exitErr
}

// Descriptor returns a copy of the descriptor the process was launched from.
func (h *Handle) Descriptor() Descriptor {
	return h.desc.Clone()
}

// HasExited reports whether the process is gone.
func (h *Handle) HasExited() bool {
	s := h.State()
	return s == StateExited || s == StateKilled
}

// Shutdown asks the process to exit, waits up to the grace period, then
// kills its process group. Group members that outlive the leader are killed
// either way. Calls after the first return nil without signalling anything.
func (h *Handle) Shutdown(ctx context.Context) error {
	if !h.shutdownOnce.CompareAndSwap(false, true) {
		return nil
	}
	log := h.logger.With(zap.Int("pid", h.PID()))
	if h.HasExited() {
		h.killStragglers(log)
		return nil
	}
	h.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))

	log.Info("stopping sidecar", zap.Duration("grace", h.grace))

	if err := terminateGroup(h.cmd.Process, h.pgid); err != nil {
		if h.exited(err) {
			h.killStragglers(log)
			return nil
		}
		log.Warn("graceful stop failed, killing", zap.Error(err))
	} else {
		timer := time.NewTimer(h.grace)
		defer timer.Stop()

		select {
		case <-h.done:
			log.Info("sidecar stopped", zap.Int("exit_code", h.ExitCode()))
			h.killStragglers(log)
			return nil
		case <-timer.C:
			log.Warn("sidecar ignored stop request, killing")
		case <-ctx.Done():
			log.Warn("shutdown cancelled, killing", zap.Error(ctx.Err()))
		}
	}

	if err := killGroup(h.cmd.Process, h.pgid); err != nil && !h.exited(err) {
		return fmt.Errorf("kill sidecar %d: %w", h.PID(), err)
	}

	select {
	case <-h.done:
		log.Info("sidecar killed")
		return nil
	case <-time.After(killWait):
		return fmt.Errorf("pid %d: %w", h.PID(), ErrShutdownTimeout)
	}
}

// Close implements io.Closer with a background context.
func (h *Handle) Close() error {
	return h.Shutdown(context.Background())
}

// killStragglers kills whatever is left of the process group once the
// leader is gone. A group id cannot be reused while any member exists.
func (h *Handle) killStragglers(log *zap.Logger) {
	if !GroupAlive(h.pgid) {
		return
	}
	if err := KillGroup(h.pgid); err != nil {
		log.Warn("failed to kill leftover sidecar processes", zap.Error(err))
		return
	}
	log.Info("killed leftover sidecar processes", zap.Int("pgid", h.pgid))
}

// exited reports whether a signalling error only means the process is gone.
func (h *Handle) exited(err error) bool {
	if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return true
	}
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// waitLoop reaps the process and records how it ended.
func (h *Handle) waitLoop() {
	h.waitOnce.Do(func() {
		err := h.cmd.Wait()
		for _, w := range h.writers {
			w.Flush()
		}

		h.mu.Lock()
		h.exitErr = err
		h.mu.Unlock()

		exitCode := 0
		state := StateExited

		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
				if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
					state = StateKilled
				}
			} else {
				exitCode = -1
			}
		}

		h.exitCode.Store(int32(exitCode))
		h.state.Store(int32(state))
		close(h.done)

		h.logger.Info("sidecar exited",
			zap.Int("pid", h.PID()),
			zap.Int("exit_code", exitCode),
			zap.Stringer("state", state),
		)
	})
}
