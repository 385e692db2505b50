/*
Package sidecar launches and owns the backend process that serves the
desktop application's HTTP API.

# Overview

A launch goes through four pure-or-small steps:

	d := sidecar.ResolveDescriptor(mode, opts)      // no I/O
	err := sidecar.PrepareEnvironment(dataDir)      // development only
	d, err = sidecar.Locate(d, locateOpts)          // is it runnable here?
	h, err := sidecar.Launch(d, launchOpts)         // spawn, do not wait

Development mode runs "python3 pyserver/app.py" ("python" on Windows) from
the project directory. Production mode runs the executable bundled next to
the application under the logical name "flask_sidecar", accepting the
"<name>-<target-triple>" variants produced by bundlers, plus an optional
<name>.toml or <name>.yaml manifest with extra args and env.

# Errors

Every failure wraps one of ErrResolutionFailure, ErrExecutableNotFound,
ErrSpawnFailed or ErrDirectoryPrep. Policy (fatal or skip) is decided by
the supervisor, not here.

# Ownership

Launch returns a *Handle. Exactly one owner may call Shutdown; everything
else should hold the View interface. Shutdown signals the whole process
group, waits for the grace period and then kills it. It is idempotent.

On Linux the sidecar also receives SIGKILL if the shell dies abruptly.
*/
package sidecar
