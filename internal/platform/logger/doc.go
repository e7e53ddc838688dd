// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON
// (or text) logging with configurable log levels, helpers that carry a logger
// through a context, and helpers that capture log output in tests.
package logger
