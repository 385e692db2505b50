// Package logging provides structured logging for the desktop shell using uber/zap.
//
// Two output modes are supported:
//   - Production: JSON lines, suitable for shipping with crash reports
//   - Development: colored console output
//
// When Config.Dir is set the same entries are also appended, as JSON, to
// Dir/shell.log.
//
// Components log through named children of a single root logger so that
// sidecar output, supervisor decisions and control server traffic can be
// told apart:
//
//	root := logging.NewDefault()
//	sup := root.Named("supervisor")
//	sup.Info("sidecar launched", zap.Int("pid", pid))
//
// Sync must be called before the process exits.
package logging
