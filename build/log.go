// Package build provides the rotating-log-writer and subsystem-logger
// plumbing shared by every package in this repository. It follows the
// pattern of the teacher's root log.go (per-subsystem loggers registered
// against one root logger) and log_filelog.go (the log writer itself),
// backed by decred/slog and a jrick/logrotate-rotated file.
package build

import (
	"fmt"
	"io"
	"os"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// RotatingLogWriter wraps a rotating log file and a slog.Backend, handing
// out one slog.Logger per subsystem tag. All subsystem loggers share the
// same backend and therefore the same output file and formatting.
type RotatingLogWriter struct {
	backend    *slog.Backend
	rotator    *rotator.Rotator
	subsystems map[string]slog.Logger
}

// NewRotatingLogWriter returns a writer with logging initially directed at
// stdout only; call InitLogRotator to also write to a rotated file.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{
		backend:    slog.NewBackend(os.Stdout),
		subsystems: make(map[string]slog.Logger),
	}
}

// InitLogRotator opens (creating if necessary) a rotated log file at
// logFile, rolling it over once it exceeds maxSizeMB megabytes, and directs
// all subsequent logging to both stdout and the rotated file.
func (w *RotatingLogWriter) InitLogRotator(logFile string, maxSizeMB, maxRolls int) error {
	r, err := rotator.New(logFile, int64(maxSizeMB*1024), false, maxRolls)
	if err != nil {
		return fmt.Errorf("build: failed to create log rotator: %w", err)
	}
	w.rotator = r
	w.backend = slog.NewBackend(io.MultiWriter(os.Stdout, r))
	return nil
}

// GenSubLogger creates a new slog.Logger tagged with subsystem, backed by
// this writer's current backend.
func (w *RotatingLogWriter) GenSubLogger(subsystem string) slog.Logger {
	return w.backend.Logger(subsystem)
}

// RegisterSubLogger tracks a subsystem's logger so SetLevel and SetLevels
// can reach it later, mirroring the teacher's SetSubLogger helper.
func (w *RotatingLogWriter) RegisterSubLogger(subsystem string, logger slog.Logger) {
	w.subsystems[subsystem] = logger
}

// SetLevel sets the logging level of a single registered subsystem. It is a
// no-op if the subsystem was never registered.
func (w *RotatingLogWriter) SetLevel(subsystem string, level slog.Level) {
	if logger, ok := w.subsystems[subsystem]; ok {
		logger.SetLevel(level)
	}
}

// SetLevels sets the logging level of every registered subsystem.
func (w *RotatingLogWriter) SetLevels(level slog.Level) {
	for _, logger := range w.subsystems {
		logger.SetLevel(level)
	}
}

// Close stops the underlying log rotator, if one was initialized.
func (w *RotatingLogWriter) Close() {
	if w.rotator != nil {
		w.rotator.Close()
	}
}

// ParseLevel maps a level name (trace, debug, info, warn, error, critical,
// off) to a slog.Level, as accepted by configuration and CLI flags.
func ParseLevel(name string) (slog.Level, bool) {
	switch name {
	case "trace":
		return slog.LevelTrace, true
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "critical":
		return slog.LevelCritical, true
	case "off":
		return slog.LevelOff, true
	default:
		return slog.LevelInfo, false
	}
}

// LogClosure defers formatting an expensive log message until the logging
// level actually warrants it, matching the teacher's logClosure helper.
type LogClosure func() string

// String invokes the underlying function and returns its result.
func (c LogClosure) String() string {
	return c()
}

// NewLogClosure wraps a function returning a log line in a fmt.Stringer so
// it is only evaluated when the message is actually emitted.
func NewLogClosure(c func() string) LogClosure {
	return LogClosure(c)
}
