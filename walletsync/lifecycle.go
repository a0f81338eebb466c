package walletsync

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Start implements the Lifecycle Controller's start gate: it fails
// AlreadyRunning if a sync task already exists and has not finished,
// attempts to bring the daemon connection online, and on success spawns
// the supervisor loop.
func (e *Engine) Start(autoReconnect bool) error {
	e.mtx.Lock()
	if e.running {
		select {
		case <-e.done:
			// Previous task finished; fall through and start a new one.
		default:
			e.mtx.Unlock()
			return ErrAlreadyRunning
		}
	}

	if err := e.api.Connect(); err != nil {
		e.mtx.Unlock()
		return fmt.Errorf("%w: %v", ErrNotRunning, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	e.taskErr = nil
	done := e.done
	e.mtx.Unlock()

	go e.run(ctx, done, autoReconnect)

	w := e.wallet
	w.Dispatch(Online())
	return nil
}

// run is the supervisor loop body: one full bootstrap sync followed by
// event multiplexing, restarted per the auto-reconnect policy whenever it
// returns.
func (e *Engine) run(ctx context.Context, done chan struct{}, autoReconnect bool) {
	defer close(done)

	for {
		err := runSupervisor(ctx, e.wallet, e.api)
		e.wallet.Dispatch(Offline())

		select {
		case <-ctx.Done():
			// A Stop()-requested cancellation surfaces here as
			// runSupervisor returning ctx.Err(); that is the expected
			// shutdown path, not a task failure.
			if err != nil && !errors.Is(err, context.Canceled) {
				e.mtx.Lock()
				e.taskErr = err
				e.mtx.Unlock()
			}
			return
		default:
		}

		if !autoReconnect {
			e.api.Shutdown()
			e.mtx.Lock()
			e.taskErr = err
			e.mtx.Unlock()
			return
		}

		if connErr := e.api.Connect(); connErr == nil {
			e.wallet.Dispatch(Online())
			continue
		}

		select {
		case <-ctx.Done():
			if err != nil && !errors.Is(err, context.Canceled) {
				e.mtx.Lock()
				e.taskErr = err
				e.mtx.Unlock()
			}
			return
		case <-time.After(AutoReconnectInterval):
		}
	}
}

// Stop implements the Lifecycle Controller's stop gate: it cancels the
// running sync task (or joins an already-finished one), disconnects the
// transport in both cases, and fails NotRunning if no task was present.
func (e *Engine) Stop() error {
	e.mtx.Lock()
	if !e.running {
		e.mtx.Unlock()
		return ErrNotRunning
	}
	cancel := e.cancel
	done := e.done
	e.running = false
	e.mtx.Unlock()

	select {
	case <-done:
		// Already finished; nothing to cancel.
	default:
		cancel()
		e.wallet.Dispatch(Offline())
	}
	<-done

	e.api.Shutdown()

	e.mtx.Lock()
	taskErr := e.taskErr
	e.mtx.Unlock()
	if taskErr != nil {
		return fmt.Errorf("%w: %v", ErrTaskError, taskErr)
	}
	return nil
}
