// Package logging builds slog loggers with the console and JSON handlers
// shared by the CLI and the ingestion pipeline.
package logging
