package events

import (
	"context"
	"os"
	"sync"
)

type contextKey int

const (
	loggerKey contextKey = iota
	commandKey
)

// FromContext extracts logger from context.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return defaultLogger
}

// WithLogger adds logger to context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithCommand records the command mode (connect, add, delete, init, import)
// and tags the context logger with it.
func WithCommand(ctx context.Context, command string) context.Context {
	logger := FromContext(ctx).WithField("command", command)
	ctx = context.WithValue(ctx, commandKey, command)
	return WithLogger(ctx, logger)
}

// GetCommand retrieves the command mode from context.
func GetCommand(ctx context.Context) string {
	if cmd, ok := ctx.Value(commandKey).(string); ok {
		return cmd
	}
	return ""
}

var defaultLogger = &Logger{
	mu:     &sync.Mutex{},
	level:  WarnLevel,
	format: "text",
	output: os.Stderr,
	fields: make(map[string]interface{}),
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
