package walletsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/duskline/duskwallet/daemon"
)

// AutoReconnectInterval is the fixed delay the Lifecycle Controller waits
// between reconnect attempts when auto-reconnect is enabled.
const AutoReconnectInterval = 10 * time.Second

// Engine is the Lifecycle Controller: it gates Start/Stop against a
// background supervisor task and reports whether that task is alive.
type Engine struct {
	wallet Wallet
	api    daemon.API

	mtx     sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	taskErr error
	running bool
}

// NewEngine returns an Engine driving wallet's sync state through api. It
// does not start the sync task; call Start.
func NewEngine(wallet Wallet, api daemon.API) *Engine {
	return &Engine{wallet: wallet, api: api}
}

// API returns the daemon client this engine drives.
func (e *Engine) API() daemon.API {
	return e.api
}

// IsRunning reports whether the sync task is alive and the daemon
// connection is online.
func (e *Engine) IsRunning() bool {
	e.mtx.Lock()
	running := e.running
	done := e.done
	e.mtx.Unlock()

	if !running {
		return false
	}
	select {
	case <-done:
		return false
	default:
	}
	return e.api.IsOnline()
}
