package kvgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with kvgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithPath adds a store path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogOpen logs the outcome of opening a store.
// Key material is never logged, only sizes and counts.
func (l *Logger) LogOpen(path string, pages uint32, keys int, err error) {
	if err != nil {
		l.Error("open failed",
			"path", path,
			"error", err,
		)
	} else {
		l.Info("store opened",
			"path", path,
			"pages", pages,
			"keys", keys,
		)
	}
}

// LogPut logs a put operation.
func (l *Logger) LogPut(keyLen, valueLen int, err error) {
	if err != nil {
		l.Error("put failed",
			"key_len", keyLen,
			"value_len", valueLen,
			"error", err,
		)
	} else {
		l.Debug("put completed",
			"key_len", keyLen,
			"value_len", valueLen,
		)
	}
}

// LogGet logs a get operation.
func (l *Logger) LogGet(keyLen int, err error) {
	if err != nil {
		l.Debug("get failed",
			"key_len", keyLen,
			"error", err,
		)
	} else {
		l.Debug("get completed",
			"key_len", keyLen,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(keyLen int, err error) {
	if err != nil {
		l.Error("delete failed",
			"key_len", keyLen,
			"error", err,
		)
	} else {
		l.Debug("delete completed",
			"key_len", keyLen,
		)
	}
}

// LogClose logs the outcome of closing a store.
func (l *Logger) LogClose(path string, err error) {
	if err != nil {
		l.Error("close failed",
			"path", path,
			"error", err,
		)
	} else {
		l.Info("store closed",
			"path", path,
		)
	}
}

// LogBackup logs a backup operation.
func (l *Logger) LogBackup(ctx context.Context, name string, pages uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "backup failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "backup completed",
			"name", name,
			"pages", pages,
		)
	}
}

// LogRestore logs a restore operation.
func (l *Logger) LogRestore(ctx context.Context, name, path string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"name", name,
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "restore completed",
			"name", name,
			"path", path,
		)
	}
}

// LogCheck logs an integrity check.
func (l *Logger) LogCheck(ctx context.Context, healthy bool, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "check failed",
			"error", err,
		)
	case !healthy:
		l.WarnContext(ctx, "check found inconsistencies")
	default:
		l.InfoContext(ctx, "check completed",
			"healthy", true,
		)
	}
}
