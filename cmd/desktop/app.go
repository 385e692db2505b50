package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"github.com/bomos/shell/internal/app"
	"github.com/bomos/shell/internal/domain/sidecar"
	"github.com/bomos/shell/internal/domain/supervisor"
)

// Events pushed to the frontend.
const (
	EventSidecarStatus = "sidecar:status"
	EventSidecarLog    = "sidecar:log"
)

const shutdownTimeout = 10 * time.Second

// DesktopApp is the Wails binding struct. Its exported methods are exposed
// to the frontend as window.go.main.DesktopApp.
type DesktopApp struct {
	ctx    context.Context
	core   *app.App
	logger *zap.Logger

	exitCode  atomic.Int32
	stopLogs  func()
	closeOnce sync.Once
}

// NewDesktopApp creates the binding around an unstarted App.
func NewDesktopApp(core *app.App, logger *zap.Logger) *DesktopApp {
	return &DesktopApp{core: core, logger: logger.Named("desktop")}
}

// startup runs on Wails OnStartup and launches the sidecar. A fatal startup
// error is shown in a dialog and the application quits with status 1.
func (a *DesktopApp) startup(ctx context.Context) {
	a.ctx = ctx
	a.forwardLogs()

	if err := a.core.Start(ctx); err != nil {
		a.exitCode.Store(1)
		message := err.Error()
		var fatal *supervisor.FatalError
		if errors.As(err, &fatal) {
			message = fatal.Message
		}
		a.logger.Error("Startup failed", zap.Error(err))
		_, _ = wailsRuntime.MessageDialog(ctx, wailsRuntime.MessageDialogOptions{
			Type:    wailsRuntime.ErrorDialog,
			Title:   "bom-os could not start",
			Message: message,
		})
		wailsRuntime.Quit(ctx)
		return
	}

	wailsRuntime.EventsEmit(ctx, EventSidecarStatus, a.core.Status())
}

// shutdown runs on Wails OnShutdown.
func (a *DesktopApp) shutdown(ctx context.Context) {
	a.closeOnce.Do(func() {
		if a.stopLogs != nil {
			a.stopLogs()
		}
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := a.core.Shutdown(stopCtx); err != nil {
			a.logger.Warn("Shutdown incomplete", zap.Error(err))
		}
	})
}

// forwardLogs pushes sidecar output lines to the frontend.
func (a *DesktopApp) forwardLogs() {
	tail := a.core.Supervisor().Tail()
	if tail == nil {
		return
	}
	_, lines, cancel := tail.Subscribe(256)
	a.stopLogs = cancel
	go func() {
		for line := range lines {
			wailsRuntime.EventsEmit(a.ctx, EventSidecarLog, line)
		}
	}()
}

// ExitCode is the process status after the window closes.
func (a *DesktopApp) ExitCode() int {
	return int(a.exitCode.Load())
}

// Ping answers the frontend's liveness call.
func (a *DesktopApp) Ping() string {
	return a.core.Ping()
}

// SidecarStatus returns the supervisor status.
func (a *DesktopApp) SidecarStatus() supervisor.Status {
	return a.core.Status()
}

// SidecarLogs returns the retained sidecar output, oldest first.
func (a *DesktopApp) SidecarLogs() []sidecar.Line {
	tail := a.core.Supervisor().Tail()
	if tail == nil {
		return nil
	}
	return tail.Lines()
}

// ControlAddress returns the loopback control server address, or "" when it
// is not running.
func (a *DesktopApp) ControlAddress() string {
	return a.core.ControlAddr()
}
