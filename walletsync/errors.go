package walletsync

import "errors"

// Sentinel error kinds surfaced at the core's boundary, matched with
// errors.Is rather than a closed enum.
var (
	// ErrAlreadyRunning is returned by Start when a sync task already
	// exists and has not finished.
	ErrAlreadyRunning = errors.New("walletsync: already running")

	// ErrNotRunning is returned by Stop when no task is present, or by
	// Start when the initial reconnect attempt fails.
	ErrNotRunning = errors.New("walletsync: not running")

	// ErrNetworkMismatch is returned when the daemon's network identity
	// disagrees with the wallet's. It is fatal to the current sync pass.
	ErrNetworkMismatch = errors.New("walletsync: daemon network mismatch")

	// ErrTaskError wraps a failure surfaced by Stop when the sync task it
	// joined had ended abnormally.
	ErrTaskError = errors.New("walletsync: sync task failed")

	// ErrDaemonAPI wraps any daemon transport/RPC failure encountered
	// during a sync pass.
	ErrDaemonAPI = errors.New("walletsync: daemon API error")
)
