/*
Package log provides structured logging for LocalPaste built on zerolog.

Init configures the global Logger once at startup (console output for
interactive use, JSON for services). Packages obtain child loggers via
WithComponent and the id helpers so every line carries its origin:

	logger := log.WithComponent("store")
	logger.Warn().Str("paste_id", id).Msg("derived index row missing; falling back to canonical")
*/
package log
