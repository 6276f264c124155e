// Package logging assembles structured slog loggers and formatting helpers used
// across the archiver.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes field constants plus helpers that enforce the
// event_type / error_hint / impact shape on warnings and errors. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
