// Package logging assembles structured slog loggers and formatting helpers used
// across objectid components.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so matching code can tag log
// lines with operation names, record IDs, and correlation IDs. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
