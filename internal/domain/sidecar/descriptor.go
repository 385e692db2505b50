package sidecar

import (
	"fmt"
	"runtime"
	"slices"
)

// Default launch parameters.
const (
	DefaultScript      = "pyserver/app.py"
	DefaultSidecarName = "flask_sidecar"
	DefaultPort        = 5005
	DefaultHealthPath  = "/health"

	// PortEnv carries the listen port to the sidecar.
	PortEnv = "FLASK_PORT"
)

// Descriptor is the resolved launch specification. Values are copied, never
// shared, so a Descriptor cannot change after resolution.
type Descriptor struct {
	Mode LaunchMode
	// Program is the interpreter name in development and the bundled
	// executable's logical name in production.
	Program string
	Args    []string
	Dir     string
	Env     []string
	// Path is the absolute executable path, set by Locate.
	Path       string
	HealthPath string
}

// Executable returns the path to exec: Path when located, Program otherwise.
func (d Descriptor) Executable() string {
	if d.Path != "" {
		return d.Path
	}
	return d.Program
}

// Clone returns a deep copy.
func (d Descriptor) Clone() Descriptor {
	d.Args = slices.Clone(d.Args)
	d.Env = slices.Clone(d.Env)
	return d
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %v (%s)", d.Executable(), d.Args, d.Mode)
}

// ResolveOptions parameterizes ResolveDescriptor. Zero values fall back to
// the package defaults.
type ResolveOptions struct {
	GOOS        string
	Script      string
	ProjectDir  string
	SidecarName string
	Args        []string
	Port        int
	HealthPath  string
}

// ResolveDescriptor maps a launch mode to a descriptor. It performs no I/O.
func ResolveDescriptor(mode LaunchMode, opts ResolveOptions) Descriptor {
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	health := opts.HealthPath
	if health == "" {
		health = DefaultHealthPath
	}

	d := Descriptor{
		Mode:       mode,
		Env:        []string{fmt.Sprintf("%s=%d", PortEnv, port)},
		HealthPath: health,
	}

	switch mode {
	case ModeDevelopment:
		script := opts.Script
		if script == "" {
			script = DefaultScript
		}
		d.Program = InterpreterFor(goos)
		d.Args = []string{script}
		d.Dir = opts.ProjectDir
	default:
		name := opts.SidecarName
		if name == "" {
			name = DefaultSidecarName
		}
		d.Program = name
		d.Args = slices.Clone(opts.Args)
	}

	return d
}

// InterpreterFor returns the Python interpreter name for a GOOS value.
func InterpreterFor(goos string) string {
	if goos == "windows" {
		return "python"
	}
	return "python3"
}

// TargetTriple returns the Rust-style target triple bundlers append to
// sidecar binaries, e.g. "x86_64-unknown-linux-gnu".
func TargetTriple(goos, goarch string) string {
	arch := goarch
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	case "arm":
		arch = "armv7"
	}

	switch goos {
	case "linux":
		return arch + "-unknown-linux-gnu"
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	default:
		return arch + "-unknown-" + goos
	}
}
