package sidecar

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
)

// nativeExecutableTypes are the MIME types accepted for a bundled sidecar.
var nativeExecutableTypes = []string{
	"application/x-elf",
	"application/x-mach-binary",
	"application/vnd.microsoft.portable-executable",
	"application/x-msdownload",
}

// LocateOptions controls where Locate looks for executables.
type LocateOptions struct {
	// BundleDirs are searched in order for the bundled sidecar.
	BundleDirs []string
	GOOS       string
	GOARCH     string
	// LookPath resolves interpreter names; defaults to exec.LookPath.
	LookPath func(string) (string, error)
}

// DefaultBundleDirs returns the directory holding the running executable
// and, on macOS, the app bundle's Resources directory.
func DefaultBundleDirs() []string {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	dir := filepath.Dir(exe)
	dirs := []string{dir}
	if runtime.GOOS == "darwin" {
		dirs = append(dirs, filepath.Join(dir, "..", "Resources"))
	}
	return dirs
}

// Locate checks that the descriptor's executable exists on this host and
// returns a copy with Path filled in.
//
// Development: the interpreter must be on PATH and the script must exist.
// Production: the bundled binary must be found in one of the bundle dirs
// and be a native executable; a manifest next to it is merged in.
func Locate(d Descriptor, opts LocateOptions) (Descriptor, error) {
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.GOARCH == "" {
		opts.GOARCH = runtime.GOARCH
	}
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}

	if d.Mode == ModeDevelopment {
		return locateInterpreter(d, opts)
	}
	return locateBundled(d, opts)
}

func locateInterpreter(d Descriptor, opts LocateOptions) (Descriptor, error) {
	path, err := opts.LookPath(d.Program)
	if err != nil {
		return d, &LaunchError{Op: "locate", Program: d.Program, Kind: ErrExecutableNotFound, Err: err}
	}

	if len(d.Args) > 0 {
		script := d.Args[0]
		if !filepath.IsAbs(script) {
			script = filepath.Join(d.Dir, script)
		}
		if _, err := os.Stat(script); err != nil {
			return d, &LaunchError{
				Op:      "locate",
				Program: d.Program,
				Kind:    ErrExecutableNotFound,
				Err:     fmt.Errorf("script %s: %w", script, err),
			}
		}
	}

	out := d.Clone()
	out.Path = path
	return out, nil
}

func locateBundled(d Descriptor, opts LocateOptions) (Descriptor, error) {
	names := BundledNames(d.Program, opts.GOOS, opts.GOARCH)
	pattern := "{" + strings.Join(names, ",") + "}"

	for _, dir := range opts.BundleDirs {
		matches, err := doublestar.Glob(os.DirFS(dir), pattern)
		if err != nil {
			return d, &LaunchError{Op: "resolve", Program: d.Program, Kind: ErrResolutionFailure, Err: err}
		}

		for _, name := range names {
			if !slices.Contains(matches, name) {
				continue
			}
			path := filepath.Join(dir, name)
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			return resolveBundled(d, dir, path)
		}
	}

	return d, &LaunchError{
		Op:      "locate",
		Program: d.Program,
		Kind:    ErrExecutableNotFound,
		Err:     fmt.Errorf("searched %s for %s", strings.Join(opts.BundleDirs, ", "), strings.Join(names, ", ")),
	}
}

func resolveBundled(d Descriptor, dir, path string) (Descriptor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return d, &LaunchError{Op: "resolve", Program: d.Program, Kind: ErrResolutionFailure, Err: err}
	}

	if err := checkExecutable(abs); err != nil {
		return d, &LaunchError{Op: "resolve", Program: d.Program, Kind: ErrResolutionFailure, Err: err}
	}

	manifest, _, err := LoadManifest(dir, d.Program)
	if err != nil {
		return d, &LaunchError{Op: "resolve", Program: d.Program, Kind: ErrResolutionFailure, Err: err}
	}

	out := d.Clone()
	if manifest != nil {
		out = manifest.apply(out)
	}
	out.Path = abs
	if out.Dir == "" {
		out.Dir = filepath.Dir(abs)
	}
	return out, nil
}

// BundledNames lists candidate file names for a bundled sidecar, most
// specific first.
func BundledNames(name, goos, goarch string) []string {
	triple := TargetTriple(goos, goarch)
	if goos == "windows" {
		return []string{name + "-" + triple + ".exe", name + ".exe"}
	}
	return []string{name + "-" + triple, name}
}

// errNotExecutable is wrapped when the located file is not a native binary.
var errNotExecutable = errors.New("not a native executable")

// checkExecutable sniffs the file header and rejects anything that is not
// a native executable.
func checkExecutable(path string) error {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			// Unreadable but present; let the spawn report the real failure.
			return nil
		}
		return fmt.Errorf("detect %s: %w", filepath.Base(path), err)
	}
	for m := mt; m != nil; m = m.Parent() {
		for _, accepted := range nativeExecutableTypes {
			if m.Is(accepted) {
				return nil
			}
		}
	}
	return fmt.Errorf("%s is %s: %w", filepath.Base(path), mt.String(), errNotExecutable)
}
