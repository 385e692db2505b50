package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bomos/shell/internal/domain/appstate"
	"github.com/bomos/shell/internal/domain/readiness"
	"github.com/bomos/shell/internal/domain/sidecar"
	"github.com/bomos/shell/internal/infrastructure/journal"
	"github.com/bomos/shell/internal/infrastructure/monitoring"
	"github.com/bomos/shell/internal/infrastructure/pidfile"
	"github.com/bomos/shell/internal/shared/id"
	"go.uber.org/zap"
)

// journalTimeout bounds journal writes made outside a caller's context.
const journalTimeout = 5 * time.Second

// Journal records runs. *journal.Store implements it.
type Journal interface {
	Begin(ctx context.Context, r journal.Run) error
	Update(ctx context.Context, runID id.RunID, phase, path string, pid int) error
	Finish(ctx context.Context, runID id.RunID, phase string, exitCode *int, runErr error) error
}

// ReadinessOptions configures the post-launch probe.
type ReadinessOptions struct {
	Enabled bool
	// Required turns a probe failure into a *FatalError. Otherwise the probe
	// runs in the background and a failure is only logged.
	Required bool

	// BaseURL is the sidecar origin; the descriptor's health path is appended.
	BaseURL    string
	Timeout    time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Options configures a Supervisor.
type Options struct {
	Mode        sidecar.LaunchMode
	Resolve     sidecar.ResolveOptions
	Locate      sidecar.LocateOptions
	DataDir     string
	GracePeriod time.Duration
	Readiness   ReadinessOptions

	// PidFile, when set, is written after launch and used to reap an
	// orphaned sidecar on the next start.
	PidFile string
	Journal Journal
	Tail    *sidecar.Tail
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// Status is a point-in-time view of the supervisor for status endpoints.
type Status struct {
	Phase    string     `json:"phase"`
	Mode     string     `json:"mode"`
	RunID    string     `json:"run_id,omitempty"`
	Program  string     `json:"program,omitempty"`
	Path     string     `json:"path,omitempty"`
	PID      int        `json:"pid,omitempty"`
	State    string     `json:"state,omitempty"`
	Started  *time.Time `json:"started,omitempty"`
	Uptime   string     `json:"uptime,omitempty"`
	ExitCode *int       `json:"exit_code,omitempty"`
	Ready    bool       `json:"ready"`
	Error    string     `json:"error,omitempty"`
}

// Supervisor drives one sidecar launch and its teardown.
type Supervisor struct {
	opts      Options
	container *appstate.Container
	logger    *zap.Logger
	metrics   *monitoring.Metrics

	phase    atomic.Int32
	ready    atomic.Bool
	stopping atomic.Bool

	mu          sync.RWMutex
	runID       id.RunID
	desc        sidecar.Descriptor
	view        sidecar.View
	lastErr     error
	watchDone   chan struct{}
	cancelProbe context.CancelFunc
	probeDone   chan struct{}
}

// New creates a supervisor that registers the sidecar in container.
func New(container *appstate.Container, opts Options) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics()
	}
	s := &Supervisor{
		opts:      opts,
		container: container,
		logger:    opts.Logger.Named("supervisor"),
		metrics:   opts.Metrics,
	}
	s.metrics.SetPhase(int(PhaseUninitialized))
	return s
}

// Phase returns the current phase.
func (s *Supervisor) Phase() Phase {
	return Phase(s.phase.Load())
}

// Mode returns the launch mode.
func (s *Supervisor) Mode() sidecar.LaunchMode {
	return s.opts.Mode
}

// Tail returns the output buffer, which may be nil.
func (s *Supervisor) Tail() *sidecar.Tail {
	return s.opts.Tail
}

// View returns the registered sidecar, if any.
func (s *Supervisor) View() (sidecar.View, bool) {
	return appstate.Lookup[sidecar.View](s.container)
}

// Ready reports whether the readiness probe succeeded.
func (s *Supervisor) Ready() bool {
	return s.ready.Load()
}

func (s *Supervisor) transition(from, to Phase) error {
	if !from.CanTransition(to) || !s.phase.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("%w: %s -> %s (phase is %s)", ErrIllegalTransition, from, to, s.Phase())
	}
	s.metrics.SetPhase(int(to))
	s.logger.Debug("Phase changed", zap.Stringer("from", from), zap.Stringer("to", to))
	return nil
}

// Start resolves, launches and registers the sidecar. It returns nil when
// the sidecar is running or was skipped, and a *FatalError when startup must
// abort. A second call returns ErrIllegalTransition.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := s.transition(PhaseUninitialized, PhaseResolving); err != nil {
		return err
	}

	mode := s.opts.Mode
	runID := id.NewRunID()
	logger := s.logger.With(zap.String("run_id", runID.String()), zap.Stringer("mode", mode))

	s.reapOrphan(logger)

	desc := sidecar.ResolveDescriptor(mode, s.opts.Resolve)
	s.mu.Lock()
	s.runID = runID
	s.desc = desc
	s.mu.Unlock()
	s.journalBegin(ctx, logger, runID, desc)

	logger.Info("Starting sidecar", zap.String("program", desc.Program), zap.Strings("args", desc.Args))

	if s.opts.DataDir != "" {
		if err := sidecar.PrepareEnvironment(s.opts.DataDir); err != nil {
			s.metrics.IncDirPrepFailures()
			logger.Warn("Could not prepare application data directory", zap.Error(err))
		}
	}

	located, err := sidecar.Locate(desc, s.opts.Locate)
	if err != nil {
		return s.fail(ctx, logger, PhaseResolving, desc, err)
	}
	s.mu.Lock()
	s.desc = located
	s.mu.Unlock()

	if err := s.transition(PhaseResolving, PhaseLaunching); err != nil {
		return err
	}

	h, err := sidecar.Launch(located, sidecar.LaunchOptions{
		Logger:      s.opts.Logger.Named("sidecar"),
		Tail:        s.opts.Tail,
		GracePeriod: s.opts.GracePeriod,
	})
	if err != nil {
		return s.fail(ctx, logger, PhaseLaunching, located, err)
	}

	if err := appstate.RegisterOwned[sidecar.View](s.container, h.View(), h.Shutdown); err != nil {
		if serr := h.Shutdown(ctx); serr != nil {
			logger.Warn("Sidecar teardown after failed registration failed", zap.Error(serr))
		}
		return s.fail(ctx, logger, PhaseLaunching, located, fmt.Errorf("register sidecar: %w", err))
	}

	watchDone := make(chan struct{})
	s.mu.Lock()
	s.view = h
	s.watchDone = watchDone
	s.mu.Unlock()

	if err := s.transition(PhaseLaunching, PhaseRunning); err != nil {
		return err
	}
	s.metrics.RecordLaunch(mode.String(), monitoring.OutcomeStarted)
	s.metrics.SetUp(true)

	s.writePidFile(logger, runID, h)
	if s.opts.Journal != nil {
		if err := s.opts.Journal.Update(ctx, runID, PhaseRunning.String(), located.Executable(), h.PID()); err != nil {
			logger.Warn("Journal update failed", zap.Error(err))
		}
	}

	go s.watch(logger, runID, h, watchDone)

	return s.awaitReadiness(ctx, logger, h)
}

// fail applies the error policy for a failed locate or launch step.
func (s *Supervisor) fail(ctx context.Context, logger *zap.Logger, from Phase, d sidecar.Descriptor, err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	mode := s.opts.Mode
	notFound := errors.Is(err, sidecar.ErrExecutableNotFound)
	unresolved := errors.Is(err, sidecar.ErrResolutionFailure)

	if mode == sidecar.ModeProduction && (notFound || unresolved) {
		logger.Warn("Bundled sidecar unavailable, continuing without backend", zap.Error(err))
		s.metrics.RecordLaunch(mode.String(), monitoring.OutcomeSkipped)
		if terr := s.transition(from, PhaseSkipped); terr != nil {
			logger.Error("Phase change failed", zap.Error(terr))
		}
		s.journalFinish(ctx, logger, PhaseSkipped, nil, err)
		return nil
	}

	outcome := monitoring.OutcomeFailed
	if notFound {
		outcome = monitoring.OutcomeNotFound
	}
	logger.Error("Sidecar launch failed", zap.String("program", d.Executable()), zap.Error(err))
	s.metrics.RecordLaunch(mode.String(), outcome)
	if terr := s.transition(from, PhaseFailed); terr != nil {
		logger.Error("Phase change failed", zap.Error(terr))
	}
	s.journalFinish(ctx, logger, PhaseFailed, nil, err)

	return &FatalError{Message: fatalMessage(d, err), Err: err}
}

func fatalMessage(d sidecar.Descriptor, err error) string {
	switch {
	case d.Mode == sidecar.ModeDevelopment && errors.Is(err, exec.ErrNotFound):
		return fmt.Sprintf("Python interpreter %q was not found on PATH. Install Python 3 to run the backend in development mode", d.Program)
	case errors.Is(err, sidecar.ErrExecutableNotFound):
		return fmt.Sprintf("The backend could not be found (%s)", d)
	default:
		return fmt.Sprintf("The backend %q could not be started", d.Executable())
	}
}

func (s *Supervisor) awaitReadiness(ctx context.Context, logger *zap.Logger, h *sidecar.Handle) error {
	r := s.opts.Readiness
	if !r.Enabled || r.BaseURL == "" {
		return nil
	}

	probe := readiness.New(readiness.Options{
		URL:        r.BaseURL + h.Descriptor().HealthPath,
		Timeout:    r.Timeout,
		MinBackoff: r.MinBackoff,
		MaxBackoff: r.MaxBackoff,
		Exited:     h.Done(),
		Logger:     s.opts.Logger.Named("probe"),
		OnAttempt:  func(int) { s.metrics.IncProbeAttempts() },
	})

	if r.Required {
		return s.probe(ctx, logger, probe)
	}

	probeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.mu.Lock()
	s.cancelProbe = cancel
	s.probeDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		_ = s.probe(probeCtx, logger, probe)
	}()
	return nil
}

func (s *Supervisor) probe(ctx context.Context, logger *zap.Logger, p *readiness.Probe) error {
	res, err := p.Wait(ctx)
	if err == nil {
		s.ready.Store(true)
		s.metrics.RecordReadiness(true, res.Elapsed)
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	s.metrics.RecordReadiness(false, res.Elapsed)
	if !s.opts.Readiness.Required {
		logger.Warn("Sidecar did not become ready", zap.Int("attempts", res.Attempts), zap.Error(err))
		return nil
	}

	logger.Error("Sidecar did not become ready", zap.Int("attempts", res.Attempts), zap.Error(err))
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	if terr := s.transition(PhaseRunning, PhaseFailed); terr != nil {
		logger.Debug("Phase change skipped", zap.Error(terr))
	}
	return &FatalError{Message: "The backend did not become ready", Err: err}
}

// watch records the sidecar's exit, whether requested or not.
func (s *Supervisor) watch(logger *zap.Logger, runID id.RunID, h *sidecar.Handle, done chan struct{}) {
	defer close(done)
	<-h.Done()

	s.metrics.SetUp(false)
	if err := s.transition(PhaseRunning, PhaseTerminated); err != nil {
		logger.Debug("Phase change skipped", zap.Error(err))
	}

	code := h.ExitCode()
	var exitErr error
	if !s.stopping.Load() {
		exitErr = h.ExitError()
		if exitErr == nil {
			exitErr = errors.New("exited unexpectedly")
		}
		logger.Warn("Sidecar exited unexpectedly",
			zap.Int("pid", h.PID()),
			zap.Int("exit_code", code),
			zap.Stringer("state", h.State()))
	} else {
		logger.Info("Sidecar exited", zap.Int("pid", h.PID()), zap.Int("exit_code", code))
	}

	if s.opts.PidFile != "" {
		if err := pidfile.Remove(s.opts.PidFile); err != nil {
			logger.Warn("Could not remove pid file", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	s.journalFinish(ctx, logger, s.Phase(), &code, exitErr)
}

// Stop tears down the container, which shuts the sidecar down, and waits
// for the exit to be recorded.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.stopping.Store(true)

	s.mu.RLock()
	cancel, probeDone, watchDone, view := s.cancelProbe, s.probeDone, s.watchDone, s.view
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
		wait(ctx, probeDone)
	}

	var timer *monitoring.Timer
	if view != nil {
		timer = monitoring.NewTimer(s.metrics.RecordShutdown)
	}

	err := s.container.Close(ctx)
	if watchDone != nil {
		wait(ctx, watchDone)
	}

	if timer != nil {
		s.logger.Info("Sidecar stopped",
			zap.Int("pid", view.PID()),
			zap.Stringer("state", view.State()),
			zap.Duration("took", timer.Stop()))
	}
	return err
}

func wait(ctx context.Context, ch <-chan struct{}) {
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

// Status returns a snapshot for status endpoints.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Phase:   s.Phase().String(),
		Mode:    s.opts.Mode.String(),
		RunID:   s.runID.String(),
		Program: s.desc.Program,
		Path:    s.desc.Path,
		Ready:   s.ready.Load(),
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	if s.view != nil {
		started := s.view.Started()
		st.PID = s.view.PID()
		st.State = s.view.State().String()
		st.Started = &started
		select {
		case <-s.view.Done():
			code := s.view.ExitCode()
			st.ExitCode = &code
		default:
			st.Uptime = time.Since(started).Round(time.Second).String()
		}
	}
	return st
}

func (s *Supervisor) reapOrphan(logger *zap.Logger) {
	if s.opts.PidFile == "" {
		return
	}
	reaper := pidfile.Reaper{
		Alive:    sidecar.GroupAlive,
		Kill:     sidecar.KillGroup,
		Identify: identifyProcess,
		Logger:   logger,
	}
	reaped, err := reaper.Reap(s.opts.PidFile)
	if err != nil {
		logger.Warn("Orphan reaping failed", zap.Error(err))
	}
	if reaped {
		s.metrics.IncOrphansReaped()
	}
}

func identifyProcess(pid int) (pidfile.Identity, error) {
	info, err := sidecar.InspectProcess(pid)
	if err != nil {
		return pidfile.Identity{}, err
	}
	return pidfile.Identity{Exe: info.Exe, StartedAt: info.StartedAt}, nil
}

func (s *Supervisor) writePidFile(logger *zap.Logger, runID id.RunID, h *sidecar.Handle) {
	if s.opts.PidFile == "" {
		return
	}
	d := h.Descriptor()
	rec := pidfile.Record{
		PID:       h.PID(),
		Program:   d.Program,
		Path:      d.Executable(),
		Mode:      d.Mode.String(),
		RunID:     runID.String(),
		StartedAt: h.Started(),
	}
	if err := pidfile.Write(s.opts.PidFile, rec); err != nil {
		logger.Warn("Could not write pid file", zap.Error(err))
	}
}

func (s *Supervisor) journalBegin(ctx context.Context, logger *zap.Logger, runID id.RunID, d sidecar.Descriptor) {
	if s.opts.Journal == nil {
		return
	}
	err := s.opts.Journal.Begin(ctx, journal.Run{
		ID:      runID,
		Mode:    d.Mode.String(),
		Program: d.Program,
		Phase:   PhaseResolving.String(),
	})
	if err != nil {
		logger.Warn("Journal begin failed", zap.Error(err))
	}
}

func (s *Supervisor) journalFinish(ctx context.Context, logger *zap.Logger, phase Phase, exitCode *int, runErr error) {
	if s.opts.Journal == nil {
		return
	}
	s.mu.RLock()
	runID := s.runID
	s.mu.RUnlock()

	if err := s.opts.Journal.Finish(ctx, runID, phase.String(), exitCode, runErr); err != nil {
		logger.Warn("Journal finish failed", zap.Error(err))
	}
}
