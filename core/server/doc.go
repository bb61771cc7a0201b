// Package server holds the HTTP server configuration.
//
// The main application entry point handles the server startup; this package
// only carries the settings (port, API key) shared between the start command
// and the middleware that enforces them.
package server
