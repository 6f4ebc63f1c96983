// Package logging assembles structured slog loggers used across misty.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so build steps automatically tag log lines
// with run IDs, step names, and spectral lines. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
