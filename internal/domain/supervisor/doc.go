/*
Package supervisor owns the sidecar's life for one application run.

Start runs once from the host's startup hook:

	reap orphan -> resolve -> prepare data dir -> locate -> launch -> register -> readiness

and moves through

	Uninitialized -> Resolving -> Launching -> Running -> Terminated
	                     |            |           |
	                     +-> Skipped  +-> Failed  +-> Failed (required readiness)

Whether a failure skips the sidecar or aborts startup depends on the launch
mode. In production a missing or unusable bundle is logged and the
application continues without a backend. A missing interpreter in
development, and a spawn failure in either mode, return a *FatalError that
the host shows to the user before exiting.

The Handle is registered in the appstate container as sidecar.View; Stop
closes the container, which shuts the process down.
*/
package supervisor
