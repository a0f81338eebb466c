// Package daemon provides the RPC contract this wallet uses to talk to a
// node: a JSON-RPC-over-websocket client grounded on the shape of
// rpcclient.Client/rpcclient.ConnConfig/NotificationHandlers, with
// subscriptions surfaced as channels fed by one read-pump goroutine through
// a per-subscription queue.ConcurrentQueue, so a slow subscriber never costs
// the read pump a dropped notification.
package daemon

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duskline/duskwallet/queue"
	"github.com/duskline/duskwallet/walletcrypto"
)

// API is the set of daemon operations the chain synchronization core
// depends on. A concrete Client implements it against a live node; tests
// substitute a fake.
type API interface {
	GetInfo() (InfoResult, error)
	GetBlockAtTopoheight(topoheight uint64) (BlockHeader, error)
	GetBlockWithTxsAtTopoheight(topoheight uint64) (BlockResponse, error)
	GetBalance(addr string, asset walletcrypto.Hash) (BalanceResult, error)
	GetBalanceAtTopoheight(addr string, asset walletcrypto.Hash, topoheight uint64) (BalanceVersion, error)
	GetNonce(addr string) (NonceResult, error)
	GetTransactionExecutor(hash walletcrypto.Hash) (TransactionExecutor, error)
	GetVersion() (string, error)
	GetAccountAssets(addr string) ([]walletcrypto.Hash, error)
	GetAsset(assetHash walletcrypto.Hash) (AssetResult, error)
	IsTxExecutedInBlock(txHash, blockHash walletcrypto.Hash) (bool, error)

	OnNewBlock() <-chan NewBlockEvent
	OnBlockOrdered() <-chan BlockOrderedEvent
	OnTransactionOrphaned() <-chan TransactionOrphanedEvent

	ConnectionLost() <-chan struct{}
	ConnectionRestored() <-chan struct{}

	// IsOnline reports whether the transport currently holds a live
	// connection to the daemon.
	IsOnline() bool

	Connect() error
	Shutdown()
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// ConnConfig describes how to dial and authenticate to a daemon's RPC
// websocket endpoint, mirroring rpcclient.ConnConfig's fields.
type ConnConfig struct {
	Host         string
	Endpoint     string
	User         string
	Pass         string
	DisableTLS   bool
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

type rpcRequest struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("daemon: rpc error %d: %s", e.Code, e.Message)
}

// Client is a JSON-RPC-over-websocket implementation of API.
type Client struct {
	cfg ConnConfig

	mtx  sync.Mutex
	conn *websocket.Conn

	nextID  uint64
	pending map[uint64]chan rpcResponse

	newBlockQueue            *queue.ConcurrentQueue
	blockOrderedQueue        *queue.ConcurrentQueue
	transactionOrphanedQueue *queue.ConcurrentQueue

	newBlock            chan NewBlockEvent
	blockOrdered        chan BlockOrderedEvent
	transactionOrphaned chan TransactionOrphanedEvent
	connectionLost      chan struct{}
	connectionRestored  chan struct{}

	quit     chan struct{}
	wg       sync.WaitGroup
	shutdown int32
	online   int32
}

// NewClient returns a Client configured to dial cfg.Host on Connect. It does
// not dial immediately. The notification queues are started immediately and
// run for the lifetime of the Client value, decoupling the read pump from
// however slowly the Sync Supervisor drains each subscription.
func NewClient(cfg ConnConfig) *Client {
	if cfg.ReconnectMin == 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax == 0 {
		cfg.ReconnectMax = time.Minute
	}
	c := &Client{
		cfg:                      cfg,
		pending:                  make(map[uint64]chan rpcResponse),
		newBlockQueue:            queue.NewConcurrentQueue(64),
		blockOrderedQueue:        queue.NewConcurrentQueue(64),
		transactionOrphanedQueue: queue.NewConcurrentQueue(64),
		newBlock:                 make(chan NewBlockEvent),
		blockOrdered:             make(chan BlockOrderedEvent),
		transactionOrphaned:      make(chan TransactionOrphanedEvent),
		connectionLost:           make(chan struct{}, 1),
		connectionRestored:       make(chan struct{}, 1),
		quit:                     make(chan struct{}),
	}
	c.newBlockQueue.Start()
	c.blockOrderedQueue.Start()
	c.transactionOrphanedQueue.Start()
	go c.forwardNewBlock()
	go c.forwardBlockOrdered()
	go c.forwardTransactionOrphaned()
	return c
}

// forwardNewBlock drains newBlockQueue's backlog onto the typed newBlock
// subscription channel, one event at a time, forever.
func (c *Client) forwardNewBlock() {
	for item := range c.newBlockQueue.ChanOut() {
		if evt, ok := item.(NewBlockEvent); ok {
			c.newBlock <- evt
		}
	}
}

func (c *Client) forwardBlockOrdered() {
	for item := range c.blockOrderedQueue.ChanOut() {
		if evt, ok := item.(BlockOrderedEvent); ok {
			c.blockOrdered <- evt
		}
	}
}

func (c *Client) forwardTransactionOrphaned() {
	for item := range c.transactionOrphanedQueue.ChanOut() {
		if evt, ok := item.(TransactionOrphanedEvent); ok {
			c.transactionOrphaned <- evt
		}
	}
}

// quitChan snapshots the current per-connection-cycle quit channel under
// the client lock, so callers can select on it without racing Connect's
// re-arm after a prior Shutdown.
func (c *Client) quitChan() chan struct{} {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.quit
}

// Connect dials the daemon and starts the read-pump goroutine. It blocks
// until the initial handshake succeeds or fails. Calling Connect again
// after a prior Shutdown re-arms the client for a new connection cycle,
// matching the Lifecycle Controller's Start/Stop/Start restart contract.
func (c *Client) Connect() error {
	scheme := "wss"
	if c.cfg.DisableTLS {
		scheme = "ws"
	}
	url := fmt.Sprintf("%s://%s%s", scheme, c.cfg.Host, c.cfg.Endpoint)

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	header := make(map[string][]string)
	if c.cfg.User != "" {
		header["Authorization"] = []string{basicAuth(c.cfg.User, c.cfg.Pass)}
	}

	conn, _, err := dialer.Dial(url, header)
	if err != nil {
		return fmt.Errorf("daemon: dial %s: %w", url, err)
	}

	c.mtx.Lock()
	if atomic.CompareAndSwapInt32(&c.shutdown, 1, 0) {
		c.quit = make(chan struct{})
	}
	c.conn = conn
	c.mtx.Unlock()

	atomic.StoreInt32(&c.online, 1)

	c.wg.Add(1)
	go c.readPump()

	log.Infof("Connected to daemon at %s", c.cfg.Host)
	return nil
}

// Shutdown closes the connection and stops the read-pump goroutine. It is
// safe to call more than once, and the client may be Connect-ed again
// afterward to start a fresh connection cycle.
func (c *Client) Shutdown() {
	if !atomic.CompareAndSwapInt32(&c.shutdown, 0, 1) {
		return
	}
	atomic.StoreInt32(&c.online, 0)

	c.mtx.Lock()
	quit := c.quit
	conn := c.conn
	c.mtx.Unlock()

	close(quit)
	if conn != nil {
		conn.Close()
	}

	c.wg.Wait()
}

// IsOnline reports whether the client currently holds a live connection.
func (c *Client) IsOnline() bool {
	return atomic.LoadInt32(&c.online) == 1
}

func (c *Client) readPump() {
	defer c.wg.Done()

	for {
		c.mtx.Lock()
		conn := c.conn
		c.mtx.Unlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.quitChan():
				return
			default:
			}
			log.Warnf("Daemon read error, connection lost: %v", err)
			c.notifyLost()
			// A successful reconnect starts a fresh read pump via Connect,
			// so this one exits either way.
			c.reconnectLoop()
			return
		}

		var resp rpcResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			log.Warnf("Daemon sent unparseable message: %v", err)
			continue
		}

		if resp.Method != "" {
			c.dispatchNotification(resp)
			continue
		}

		c.mtx.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mtx.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (c *Client) reconnectLoop() {
	backoff := c.cfg.ReconnectMin
	for {
		select {
		case <-c.quitChan():
			return
		case <-time.After(backoff):
		}

		if err := c.Connect(); err != nil {
			log.Warnf("Daemon reconnect attempt failed: %v", err)
			backoff *= 2
			if backoff > c.cfg.ReconnectMax {
				backoff = c.cfg.ReconnectMax
			}
			continue
		}

		select {
		case c.connectionRestored <- struct{}{}:
		default:
		}
		log.Infof("Reconnected to daemon at %s", c.cfg.Host)
		return
	}
}

func (c *Client) notifyLost() {
	atomic.StoreInt32(&c.online, 0)
	select {
	case c.connectionLost <- struct{}{}:
	default:
	}
}

// dispatchNotification hands a decoded push notification to its
// ConcurrentQueue rather than a bounded channel, so a slow Sync Supervisor
// never costs the read pump a dropped reorg or orphan notice.
func (c *Client) dispatchNotification(resp rpcResponse) {
	switch resp.Method {
	case "new_block":
		var evt NewBlockEvent
		if err := json.Unmarshal(resp.Params, &evt); err == nil {
			c.newBlockQueue.ChanIn() <- evt
		}
	case "block_ordered":
		var evt BlockOrderedEvent
		if err := json.Unmarshal(resp.Params, &evt); err == nil {
			c.blockOrderedQueue.ChanIn() <- evt
		}
	case "transaction_orphaned":
		var evt TransactionOrphanedEvent
		if err := json.Unmarshal(resp.Params, &evt); err == nil {
			c.transactionOrphanedQueue.ChanIn() <- evt
		}
	}
}

func (c *Client) call(method string, params interface{}, result interface{}) error {
	id := atomic.AddUint64(&c.nextID, 1)

	var raw json.RawMessage
	var err error
	if params != nil {
		raw, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("daemon: marshal params for %s: %w", method, err)
		}
	}

	replyCh := make(chan rpcResponse, 1)
	c.mtx.Lock()
	c.pending[id] = replyCh
	conn := c.conn
	c.mtx.Unlock()

	if conn == nil {
		return fmt.Errorf("daemon: not connected")
	}

	req := rpcRequest{ID: id, Method: method, Params: raw}
	c.mtx.Lock()
	err = conn.WriteJSON(req)
	c.mtx.Unlock()
	if err != nil {
		c.mtx.Lock()
		delete(c.pending, id)
		c.mtx.Unlock()
		return fmt.Errorf("daemon: write %s: %w", method, err)
	}

	select {
	case resp := <-replyCh:
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil {
			return nil
		}
		return json.Unmarshal(resp.Result, result)
	case <-c.quitChan():
		return fmt.Errorf("daemon: shutting down")
	}
}

// GetInfo returns the daemon's current chain tip and network.
func (c *Client) GetInfo() (InfoResult, error) {
	var result InfoResult
	err := c.call("get_info", nil, &result)
	return result, err
}

// GetBlockAtTopoheight returns the block header ordered at topoheight.
func (c *Client) GetBlockAtTopoheight(topoheight uint64) (BlockHeader, error) {
	var result BlockHeader
	err := c.call("get_block_at_topoheight", map[string]uint64{"topoheight": topoheight}, &result)
	return result, err
}

// GetBlockWithTxsAtTopoheight returns the full block, with transactions,
// ordered at topoheight.
func (c *Client) GetBlockWithTxsAtTopoheight(topoheight uint64) (BlockResponse, error) {
	var result BlockResponse
	err := c.call("get_block_with_txs_at_topoheight", map[string]uint64{"topoheight": topoheight}, &result)
	return result, err
}

// GetBalance returns the latest known balance version of addr for asset.
func (c *Client) GetBalance(addr string, asset walletcrypto.Hash) (BalanceResult, error) {
	var result BalanceResult
	err := c.call("get_balance", map[string]interface{}{"address": addr, "asset": asset}, &result)
	return result, err
}

// GetBalanceAtTopoheight returns addr's balance version for asset as it
// stood at exactly topoheight.
func (c *Client) GetBalanceAtTopoheight(addr string, asset walletcrypto.Hash, topoheight uint64) (BalanceVersion, error) {
	var result BalanceVersion
	err := c.call("get_balance_at_topoheight", map[string]interface{}{
		"address":    addr,
		"asset":      asset,
		"topoheight": topoheight,
	}, &result)
	return result, err
}

// GetNonce returns addr's current on-chain nonce.
func (c *Client) GetNonce(addr string) (NonceResult, error) {
	var result NonceResult
	err := c.call("get_nonce", map[string]string{"address": addr}, &result)
	return result, err
}

// GetTransactionExecutor returns the block that executed the transaction
// identified by hash.
func (c *Client) GetTransactionExecutor(hash walletcrypto.Hash) (TransactionExecutor, error) {
	var result TransactionExecutor
	err := c.call("get_transaction_executor", map[string]interface{}{"hash": hash}, &result)
	return result, err
}

// GetVersion returns the daemon's reported software version string.
func (c *Client) GetVersion() (string, error) {
	var result string
	err := c.call("get_version", nil, &result)
	return result, err
}

// GetAccountAssets returns the set of assets addr has ever transacted in.
func (c *Client) GetAccountAssets(addr string) ([]walletcrypto.Hash, error) {
	var result []walletcrypto.Hash
	err := c.call("get_account_assets", map[string]string{"address": addr}, &result)
	return result, err
}

// GetAsset returns an asset's declared metadata.
func (c *Client) GetAsset(assetHash walletcrypto.Hash) (AssetResult, error) {
	var result AssetResult
	err := c.call("get_asset", map[string]interface{}{"asset": assetHash}, &result)
	return result, err
}

// IsTxExecutedInBlock reports whether txHash was executed inside blockHash.
func (c *Client) IsTxExecutedInBlock(txHash, blockHash walletcrypto.Hash) (bool, error) {
	var result bool
	err := c.call("is_tx_executed_in_block", map[string]interface{}{
		"transaction": txHash,
		"block":       blockHash,
	}, &result)
	return result, err
}

// OnNewBlock returns the subscription channel for new_block notifications.
func (c *Client) OnNewBlock() <-chan NewBlockEvent { return c.newBlock }

// OnBlockOrdered returns the subscription channel for block_ordered
// notifications.
func (c *Client) OnBlockOrdered() <-chan BlockOrderedEvent { return c.blockOrdered }

// OnTransactionOrphaned returns the subscription channel for
// transaction_orphaned notifications.
func (c *Client) OnTransactionOrphaned() <-chan TransactionOrphanedEvent {
	return c.transactionOrphaned
}

// ConnectionLost fires once each time the underlying websocket drops.
func (c *Client) ConnectionLost() <-chan struct{} { return c.connectionLost }

// ConnectionRestored fires once each time the client successfully
// reconnects after a ConnectionLost.
func (c *Client) ConnectionRestored() <-chan struct{} { return c.connectionRestored }

var _ API = (*Client)(nil)
