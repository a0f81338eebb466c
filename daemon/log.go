package daemon

import "github.com/decred/slog"

// log is this package's subsystem logger, following the teacher's
// per-package disabled-by-default slog convention.
var log slog.Logger

func init() {
	UseLogger(slog.Disabled)
}

// UseLogger sets the logger used by this package.
func UseLogger(logger slog.Logger) {
	log = logger
}
