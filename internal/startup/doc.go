// Package startup handles application initialization: configuration loading
// from environment variables (with optional .env file support), directory
// validation, and structured startup/shutdown logging.
package startup
