// Package logger provides the structured logging surface the engine and
// CLI use, built on log/slog the way the teacher repo does (its own
// internal/logger wraps slog with a custom handler rather than pulling in
// zerolog/zap).
//
// Unlike the teacher's package-level singleton (reconfigure() mutating
// process-global state), Logger here is a small value threaded through
// construction — Engine owns one, CLI commands build one from config —
// per §9's guidance against module-init side effects and shared mutable
// globals.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Config mirrors the teacher's logger.Config shape.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // text, json
	Output io.Writer
}

// Logger wraps *slog.Logger with the fields Omnio operations tag onto
// every record (bucket, object path, op name).
type Logger struct {
	*slog.Logger
}

// New builds a Logger from Config. The zero Config produces an Info-level
// text logger to stderr.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Default returns a process-wide Logger for CLI entry points where no
// Engine-scoped logger has been constructed yet. It does not back any
// Engine's behavior.
func Default() *Logger {
	return &Logger{Logger: slog.Default()}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child Logger with the given attributes attached to every
// subsequent record, mirroring slog.Logger.With without losing the
// Logger wrapper type.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithContext attaches a request-scoped bucket/operation pair the way the
// teacher's LogContext does for NFS procedures, scaled down to Omnio's
// bucket/object-path/operation shape.
func (l *Logger) WithContext(_ context.Context, bucket, path, op string) *Logger {
	return l.With("bucket", bucket, "path", path, "op", op)
}
