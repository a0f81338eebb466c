package storage

import "github.com/decred/slog"

// log is this package's subsystem logger, disabled until UseLogger or
// SetupLoggers wires it up.
var log slog.Logger

func init() {
	UseLogger(slog.Disabled)
}

// UseLogger sets the logger used by this package.
func UseLogger(logger slog.Logger) {
	log = logger
}
