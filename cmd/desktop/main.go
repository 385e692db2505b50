package main

import (
	"embed"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"go.uber.org/zap"

	"github.com/bomos/shell/internal/app"
	"github.com/bomos/shell/internal/domain/sidecar"
	"github.com/bomos/shell/internal/infrastructure/config"
	"github.com/bomos/shell/internal/infrastructure/logging"
	"github.com/bomos/shell/internal/shared/paths"
)

//go:embed all:frontend/dist
var assets embed.FS

// buildMode is set by release builds: -ldflags "-X main.buildMode=production".
var buildMode string

func main() {
	os.Exit(run())
}

func run() int {
	mode := flag.StringP("mode", "m", "", "launch mode: development or production (overrides build profile and SIDECAR_MODE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	launchMode, err := sidecar.SelectMode(buildMode, cfg.Sidecar.Mode, *mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	development := cfg.Logging.Development || launchMode == sidecar.ModeDevelopment
	logger := logging.NewFor(cfg.Logging.Level, development, logDir(cfg)).Logger
	defer func() { _ = logger.Sync() }()

	core, err := app.New(app.Options{Config: cfg, Mode: launchMode, Logger: logger})
	if err != nil {
		logger.Error("Startup failed", zap.Error(err))
		return 1
	}
	desktop := NewDesktopApp(core, logger)

	err = wails.Run(&options.App{
		Title:  "bom-os",
		Width:  1280,
		Height: 800,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  desktop.startup,
		OnShutdown: desktop.shutdown,
		Bind: []interface{}{
			desktop,
		},
	})
	if err != nil {
		logger.Error("Window failed", zap.Error(err))
		return 1
	}
	return desktop.ExitCode()
}

func logDir(cfg *config.Config) string {
	dir, err := paths.DataDir(cfg.Storage.DataDir)
	if err != nil {
		return ""
	}
	return paths.NewLayout(dir).Logs()
}
