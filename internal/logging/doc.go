// Package logging assembles structured slog loggers and formatting helpers used
// across diarist.
//
// It owns the console and JSON handlers, routes file outputs through rotating
// lumberjack writers, and exposes context-aware helpers so stage code can tag
// log lines with cycle IDs, stage names, and control actors. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
