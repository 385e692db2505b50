package sidecar

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below wrap one of these so callers can
// classify with errors.Is.
var (
	// ErrResolutionFailure means the bundled sidecar could not be turned into a descriptor.
	ErrResolutionFailure = errors.New("sidecar resolution failed")

	// ErrExecutableNotFound means the interpreter or bundled binary is missing on this host.
	ErrExecutableNotFound = errors.New("sidecar executable not found")

	// ErrSpawnFailed means the executable exists but the OS refused to start it.
	ErrSpawnFailed = errors.New("sidecar spawn failed")

	// ErrDirectoryPrep means the application data directory could not be created.
	ErrDirectoryPrep = errors.New("application data directory could not be prepared")

	// ErrShutdownTimeout means the process survived a forced kill.
	ErrShutdownTimeout = errors.New("sidecar did not exit after kill")
)

// LaunchError describes a failed locate or launch step.
type LaunchError struct {
	Op      string // "resolve", "locate" or "launch"
	Program string
	Kind    error // one of the sentinels above
	Err     error
}

func (e *LaunchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Program, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Program, e.Kind, e.Err)
}

func (e *LaunchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// DirectoryPrepError reports a failed data directory creation.
type DirectoryPrepError struct {
	Dir string
	Err error
}

func (e *DirectoryPrepError) Error() string {
	return fmt.Sprintf("prepare %s: %v", e.Dir, e.Err)
}

func (e *DirectoryPrepError) Unwrap() []error {
	return []error{ErrDirectoryPrep, e.Err}
}
