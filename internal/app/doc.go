// Package app wires the shell together: configuration, the launch journal,
// the sidecar supervisor and the loopback control server. Both hosts build
// one App at startup and shut it down on exit.
//
// Example Usage:
//
//	a, err := app.New(app.Options{Config: cfg, Mode: mode, Logger: logger})
//	if err != nil {
//	    return err
//	}
//	if err := a.Start(ctx); err != nil {
//	    var fatal *supervisor.FatalError
//	    if errors.As(err, &fatal) {
//	        // report fatal.Message and exit
//	    }
//	}
//	defer a.Shutdown(context.Background())
package app
