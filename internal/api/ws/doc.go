// Package ws exposes the sidecar's captured output to the UI: a JSON tail
// and a WebSocket stream. Lines pass through a bluemonday strict policy so
// nothing the sidecar prints can inject markup into the webview.
package ws
