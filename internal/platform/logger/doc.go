// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, and carries request- and job-scoped loggers and trace IDs
// through context.Context so that API and worker logs can be correlated.
package logger
