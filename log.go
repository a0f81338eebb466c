package walletsync

import (
	"github.com/decred/slog"
	"github.com/duskline/duskwallet/build"
	"github.com/duskline/duskwallet/daemon"
	"github.com/duskline/duskwallet/storage"
)

// log is this package's own subsystem logger (the Sync Supervisor,
// Lifecycle Controller, Checkpoint Locator, Head-State Reconciler, Asset
// Balance Walker and Block Processor all share it, as they did in the
// original single-file network handler).
var log slog.Logger

func init() {
	UseLogger(slog.Disabled)
}

// DisableLog disables all log output from this package. Logging is disabled
// by default until UseLogger or SetupLoggers is called.
func DisableLog() {
	UseLogger(slog.Disabled)
}

// UseLogger sets this package's logger. Prefer SetupLoggers when wiring a
// full RotatingLogWriter across every subsystem.
func UseLogger(logger slog.Logger) {
	log = logger
}

// SetupLoggers registers one subsystem logger per package against root,
// mirroring the teacher's SetupLoggers/AddSubLogger convention.
func SetupLoggers(root *build.RotatingLogWriter) {
	AddSubLogger(root, "SYNC", UseLogger)
	AddSubLogger(root, "DAEM", daemon.UseLogger)
	AddSubLogger(root, "STOR", storage.UseLogger)
}

// AddSubLogger creates and registers the logger of a subsystem, handing it
// to every useLogger func supplied (there is usually exactly one).
func AddSubLogger(root *build.RotatingLogWriter, subsystem string, useLoggers ...func(slog.Logger)) {
	logger := root.GenSubLogger(subsystem)
	root.RegisterSubLogger(subsystem, logger)
	for _, use := range useLoggers {
		use(logger)
	}
}
