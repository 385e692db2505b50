// Command desktop is the bom-os window. It starts the sidecar supervisor from
// the Wails startup hook, binds Ping and SidecarStatus to the frontend, and
// tears the sidecar down when the window closes.
//
// Release builds fix the launch mode at link time:
//
//	wails build -ldflags "-X main.buildMode=production"
//
// SIDECAR_MODE and --mode override it, in that order.
package main
