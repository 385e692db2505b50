// Package paths resolves the application data directory and the files the
// shell keeps inside it.
//
// # Directory Structure
//
//	<user config dir>/com.bomos.desktop/
//	  ├── journal.db     (launch history)
//	  ├── sidecar.json   (pid file of the running sidecar)
//	  └── logs/shell.log (JSON log of the shell)
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppIdentifier names the data directory under the user config dir.
const AppIdentifier = "com.bomos.desktop"

// File names inside the data directory
const (
	JournalFile = "journal.db"
	PidFile     = "sidecar.json"
	LogsDir     = "logs"
)

// userConfigDir is swapped in tests.
var userConfigDir = os.UserConfigDir

// DataDir returns override when set, otherwise <user config dir>/AppIdentifier.
// The directory is not created.
func DataDir(override string) (string, error) {
	if override != "" {
		return filepath.Abs(override)
	}
	base, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, AppIdentifier), nil
}

// Layout holds absolute paths derived from a data directory.
type Layout struct {
	Root string
}

// NewLayout returns the layout rooted at dir.
func NewLayout(dir string) Layout {
	return Layout{Root: dir}
}

// Journal returns the launch journal database path.
func (l Layout) Journal() string {
	return filepath.Join(l.Root, JournalFile)
}

// Pid returns the sidecar pid file path.
func (l Layout) Pid() string {
	return filepath.Join(l.Root, PidFile)
}

// Logs returns the log directory path.
func (l Layout) Logs() string {
	return filepath.Join(l.Root, LogsDir)
}
