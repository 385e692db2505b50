package sidecar

import "os"

// PrepareEnvironment creates dir and any missing parents. It succeeds
// without side effects when dir already exists.
func PrepareEnvironment(dir string) error {
	if dir == "" {
		return &DirectoryPrepError{Dir: dir, Err: os.ErrInvalid}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &DirectoryPrepError{Dir: dir, Err: err}
	}
	return nil
}
