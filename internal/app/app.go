package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	apihttp "github.com/bomos/shell/internal/api/http"
	"github.com/bomos/shell/internal/domain/appstate"
	"github.com/bomos/shell/internal/domain/sidecar"
	"github.com/bomos/shell/internal/domain/supervisor"
	"github.com/bomos/shell/internal/infrastructure/config"
	"github.com/bomos/shell/internal/infrastructure/httpclient"
	"github.com/bomos/shell/internal/infrastructure/journal"
	"github.com/bomos/shell/internal/infrastructure/monitoring"
	"github.com/bomos/shell/internal/infrastructure/server"
	"github.com/bomos/shell/internal/shared/paths"
)

// journalRetention is how long finished runs are kept.
const journalRetention = 30 * 24 * time.Hour

// Options configures an App.
type Options struct {
	Config *config.Config
	Mode   sidecar.LaunchMode
	Logger *zap.Logger

	// Locate overrides executable discovery; zero uses the bundle dirs of
	// the running binary.
	Locate sidecar.LocateOptions
}

// App owns the supervisor and everything built around it.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	container *appstate.Container
	sup       *supervisor.Supervisor
	journal   *journal.Store
	health    *httpclient.Client
	server    *server.Server
	layout    paths.Layout

	closeJournal sync.Once
}

// New wires the application. Nothing is started.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dir, err := paths.DataDir(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	layout := paths.NewLayout(dir)

	a := &App{
		cfg:       cfg,
		logger:    logger,
		metrics:   monitoring.NewMetrics(),
		container: appstate.New(logger.Named("state")),
		layout:    layout,
	}

	// The supervisor reports directory failures; here a failure only costs the journal.
	if err := sidecar.PrepareEnvironment(dir); err == nil {
		store, err := journal.Open(layout.Journal(), logger)
		if err != nil {
			logger.Warn("Launch journal unavailable", zap.String("path", layout.Journal()), zap.Error(err))
		} else {
			a.journal = store
		}
	}

	a.health = httpclient.New(httpclient.Options{
		BaseURL:    cfg.SidecarURL(),
		HealthPath: cfg.Sidecar.HealthPath,
		RetryMax:   cfg.Sidecar.HealthRetries,
		Logger:     logger,
	})

	locate := opts.Locate
	if len(locate.BundleDirs) == 0 {
		locate.BundleDirs = bundleDirs(cfg)
	}

	supOpts := supervisor.Options{
		Mode: opts.Mode,
		Resolve: sidecar.ResolveOptions{
			Script:      cfg.Sidecar.Script,
			ProjectDir:  cfg.Sidecar.ProjectDir,
			SidecarName: cfg.Sidecar.Name,
			Port:        cfg.Sidecar.Port,
			HealthPath:  cfg.Sidecar.HealthPath,
		},
		Locate:      locate,
		DataDir:     dir,
		GracePeriod: cfg.Sidecar.GracePeriod,
		Readiness: supervisor.ReadinessOptions{
			Enabled:    cfg.Readiness.Enabled,
			Required:   cfg.Readiness.Required,
			BaseURL:    cfg.SidecarURL(),
			Timeout:    cfg.Readiness.Timeout,
			MinBackoff: cfg.Readiness.MinBackoff,
			MaxBackoff: cfg.Readiness.MaxBackoff,
		},
		PidFile: layout.Pid(),
		Tail:    sidecar.NewTail(cfg.Sidecar.TailLines),
		Metrics: a.metrics,
		Logger:  logger,
	}
	if a.journal != nil {
		supOpts.Journal = a.journal
	}
	a.sup = supervisor.New(a.container, supOpts)

	if cfg.Server.Enabled {
		deps := server.Deps{
			Supervisor: a.sup,
			Health:     a.health,
			Metrics:    a.metrics,
			Logger:     logger,
		}
		if a.journal != nil {
			deps.Journal = a.journal
		}
		a.server = server.NewServer(cfg, deps)
	}

	return a, nil
}

func bundleDirs(cfg *config.Config) []string {
	if cfg.Sidecar.BundleDir != "" {
		return []string{cfg.Sidecar.BundleDir}
	}
	return sidecar.DefaultBundleDirs()
}

// Start launches the sidecar and then the control server. A
// *supervisor.FatalError means the host must report it and exit.
func (a *App) Start(ctx context.Context) error {
	if a.journal != nil {
		if _, err := a.journal.Prune(ctx, journalRetention); err != nil {
			a.logger.Warn("Journal prune failed", zap.Error(err))
		}
	}

	if err := a.sup.Start(ctx); err != nil {
		return err
	}

	if a.server == nil {
		return nil
	}
	// Registered after the sidecar so Close stops serving before the sidecar goes away.
	if err := appstate.Register(a.container, a.server); err != nil {
		return fmt.Errorf("register control server: %w", err)
	}
	if err := a.server.Start(); err != nil {
		a.logger.Warn("Control server not started", zap.String("addr", a.cfg.ControlAddr()), zap.Error(err))
	}
	return nil
}

// Shutdown stops the control server and the sidecar, then closes the journal.
// It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.sup.Stop(ctx)
	if a.journal != nil {
		a.closeJournal.Do(func() {
			if cerr := a.journal.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("close journal: %w", cerr))
			}
		})
	}
	return err
}

// Ping answers the frontend's liveness call.
func (a *App) Ping() string {
	return "pong"
}

// Status returns the supervisor status.
func (a *App) Status() supervisor.Status {
	return a.sup.Status()
}

// Supervisor returns the sidecar supervisor.
func (a *App) Supervisor() *supervisor.Supervisor {
	return a.sup
}

// Metrics returns the application metrics.
func (a *App) Metrics() *monitoring.Metrics {
	return a.metrics
}

// Runs lists recent launches, newest first. It returns nil when the journal
// could not be opened.
func (a *App) Runs(ctx context.Context, limit int) ([]journal.Run, error) {
	if a.journal == nil {
		return nil, nil
	}
	return a.journal.List(ctx, limit)
}

// ControlAddr returns the control server's bound address, or "" when it is
// disabled or not listening.
func (a *App) ControlAddr() string {
	if a.server == nil {
		return ""
	}
	return a.server.Addr()
}

// DataDir returns the resolved application data directory.
func (a *App) DataDir() string {
	return a.layout.Root
}

var _ apihttp.StatusSource = (*App)(nil)
