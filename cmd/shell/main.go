package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/bomos/shell/internal/app"
	"github.com/bomos/shell/internal/domain/sidecar"
	"github.com/bomos/shell/internal/domain/supervisor"
	"github.com/bomos/shell/internal/infrastructure/config"
	"github.com/bomos/shell/internal/infrastructure/logging"
	"github.com/bomos/shell/internal/infrastructure/notify"
	"github.com/bomos/shell/internal/shared/paths"
)

// buildMode is set by release builds: -ldflags "-X main.buildMode=production".
var buildMode string

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	mode := flag.StringP("mode", "m", "", "launch mode: development or production (overrides build profile and SIDECAR_MODE)")
	port := flag.IntP("port", "p", 0, "sidecar port (overrides FLASK_PORT)")
	noServer := flag.Bool("no-control", false, "do not start the control server")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *port != 0 {
		cfg.Sidecar.Port = *port
	}
	if *noServer {
		cfg.Server.Enabled = false
	}

	launchMode, err := sidecar.SelectMode(buildMode, cfg.Sidecar.Mode, *mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	development := cfg.Logging.Development || launchMode == sidecar.ModeDevelopment
	logger := logging.NewFor(cfg.Logging.Level, development, logDir(cfg)).Logger
	defer func() { _ = logger.Sync() }()

	alerts := notify.Logged{Notifier: notify.NewDesktop("bom-os"), Logger: logger}

	a, err := app.New(app.Options{Config: cfg, Mode: launchMode, Logger: logger})
	if err != nil {
		logger.Error("Startup failed", zap.Error(err))
		return 1
	}

	logger.Info("Starting shell",
		zap.Stringer("mode", launchMode),
		zap.String("data_dir", a.DataDir()),
		zap.Int("sidecar_port", cfg.Sidecar.Port))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		var fatal *supervisor.FatalError
		if errors.As(err, &fatal) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", fatal.Message)
			_ = alerts.Alert("bom-os could not start", fatal.Message)
		} else {
			logger.Error("Startup failed", zap.Error(err))
		}
		shutdown(a, logger)
		return 1
	}

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdown(a, logger)
	return 0
}

func shutdown(a *app.App, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		logger.Warn("Shutdown incomplete", zap.Error(err))
	}
}

func logDir(cfg *config.Config) string {
	dir, err := paths.DataDir(cfg.Storage.DataDir)
	if err != nil {
		return ""
	}
	return paths.NewLayout(dir).Logs()
}
