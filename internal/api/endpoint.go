// Package api pairs HTTP endpoints with CLI commands and handles CLI output
// formatting. Each server endpoint registers a route and, optionally, a cobra
// command that calls that route on a running server.
package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint defines both an HTTP route and its corresponding CLI command.
// This provides a single source of truth for API operations.
type Endpoint interface {
	// Route returns the HTTP method, path, and handler for this endpoint.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresReady returns true if this endpoint needs the store, object
	// store and pipeline to be initialized before it can serve requests.
	RequiresReady() bool

	// Command returns a Cobra command that calls this endpoint via HTTP.
	// getServerURL is called at runtime to get the server URL (deferred
	// evaluation). May return nil if the endpoint has no CLI counterpart.
	Command(getServerURL func() string) *cobra.Command
}
