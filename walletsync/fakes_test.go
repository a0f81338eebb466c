package walletsync

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/duskline/duskwallet/asset"
	"github.com/duskline/duskwallet/daemon"
	"github.com/duskline/duskwallet/entry"
	"github.com/duskline/duskwallet/storage"
	"github.com/duskline/duskwallet/walletcrypto"
)

// memStorage is a minimal in-memory storage.Storage, grounded on the pack's
// in-process test-wallet pattern rather than a real walletdb-backed store,
// so the Sync Supervisor can be exercised without a filesystem dependency.
type memStorage struct {
	mu sync.Mutex

	hasTop     bool
	topoheight uint64
	topHash    walletcrypto.Hash

	changes map[uint64]walletcrypto.Hash

	nonce uint64

	assets map[walletcrypto.Hash]asset.WithData

	balances       map[walletcrypto.Hash]map[uint64]storage.BalanceRecord
	latestAtAsset  map[walletcrypto.Hash]uint64
	unconfirmed    map[string]uint64

	transactions     map[walletcrypto.Hash]entry.Transaction
	txCache          storage.TxCache
	txCacheSet       bool
}

func newMemStorage() *memStorage {
	return &memStorage{
		changes:       make(map[uint64]walletcrypto.Hash),
		assets:        make(map[walletcrypto.Hash]asset.WithData),
		balances:      make(map[walletcrypto.Hash]map[uint64]storage.BalanceRecord),
		latestAtAsset: make(map[walletcrypto.Hash]uint64),
		unconfirmed:   make(map[string]uint64),
		transactions:  make(map[walletcrypto.Hash]entry.Transaction),
	}
}

func (m *memStorage) SyncedTopoheight() (uint64, walletcrypto.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasTop {
		return 0, walletcrypto.Hash{}, storage.ErrNotFound
	}
	return m.topoheight, m.topHash, nil
}

func (m *memStorage) SetSyncedTopoheight(topoheight uint64, blockHash walletcrypto.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasTop = true
	m.topoheight = topoheight
	m.topHash = blockHash
	m.changes[topoheight] = blockHash
	return nil
}

func (m *memStorage) HasTopBlockHash() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasTop, nil
}

func (m *memStorage) AddChange(topoheight uint64, blockHash walletcrypto.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes[topoheight] = blockHash
	return nil
}

func (m *memStorage) ChangeAt(topoheight uint64) (storage.ChangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash, ok := m.changes[topoheight]
	if !ok {
		return storage.ChangeRecord{}, storage.ErrNotFound
	}
	return storage.ChangeRecord{Topoheight: topoheight, BlockHash: hash}, nil
}

func (m *memStorage) HighestChangeBelow(topoheight uint64) (storage.ChangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	var rec storage.ChangeRecord
	for h, hash := range m.changes {
		if h >= topoheight {
			continue
		}
		if !found || h > rec.Topoheight {
			rec = storage.ChangeRecord{Topoheight: h, BlockHash: hash}
			found = true
		}
	}
	if !found {
		return storage.ChangeRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (m *memStorage) DeleteChangesAbove(topoheight uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := false
	for h := range m.changes {
		if h > topoheight {
			delete(m.changes, h)
			deleted = true
		}
	}
	return deleted, nil
}

func (m *memStorage) Nonce() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nonce, nil
}

func (m *memStorage) SetNonce(nonce uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonce = nonce
	return nil
}

func (m *memStorage) TrackAsset(a asset.WithData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[a.Hash] = a
	return nil
}

func (m *memStorage) Assets() ([]asset.WithData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]asset.WithData, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, a)
	}
	return out, nil
}

func (m *memStorage) AssetByHash(hash walletcrypto.Hash) (asset.WithData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[hash]
	if !ok {
		return asset.WithData{}, storage.ErrNotFound
	}
	return a, nil
}

func (m *memStorage) ContainsAsset(hash walletcrypto.Hash) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.assets[hash]
	return ok, nil
}

func (m *memStorage) DeleteAssets() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets = make(map[walletcrypto.Hash]asset.WithData)
	return nil
}

func (m *memStorage) SetBalance(assetHash walletcrypto.Hash, rec storage.BalanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[assetHash] == nil {
		m.balances[assetHash] = make(map[uint64]storage.BalanceRecord)
	}
	m.balances[assetHash][rec.Topoheight] = rec
	m.latestAtAsset[assetHash] = rec.Topoheight
	return nil
}

func (m *memStorage) LatestBalance(assetHash walletcrypto.Hash) (storage.BalanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	topoheight, ok := m.latestAtAsset[assetHash]
	if !ok {
		return storage.BalanceRecord{}, storage.ErrNotFound
	}
	return m.balances[assetHash][topoheight], nil
}

func (m *memStorage) BalanceAt(assetHash walletcrypto.Hash, topoheight uint64) (storage.BalanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.balances[assetHash][topoheight]
	if !ok {
		return storage.BalanceRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (m *memStorage) HasAnyBalance() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.latestAtAsset) > 0, nil
}

func (m *memStorage) DeleteBalances() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances = make(map[walletcrypto.Hash]map[uint64]storage.BalanceRecord)
	m.latestAtAsset = make(map[walletcrypto.Hash]uint64)
	return nil
}

func (m *memStorage) UnconfirmedBalance(assetHash walletcrypto.Hash, ciphertext walletcrypto.CompressedCiphertext) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.unconfirmed[string(assetHash[:])+string(ciphertext)]
	return v, ok, nil
}

func (m *memStorage) SaveTransaction(t entry.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[t.Hash] = t
	return nil
}

func (m *memStorage) HasTransaction(hash walletcrypto.Hash) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.transactions[hash]
	return ok, nil
}

func (m *memStorage) Transaction(hash walletcrypto.Hash) (entry.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[hash]
	if !ok {
		return entry.Transaction{}, storage.ErrNotFound
	}
	return t, nil
}

func (m *memStorage) DeleteTransaction(hash walletcrypto.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transactions, hash)
	return nil
}

func (m *memStorage) DeleteTransactionsAbove(topoheight uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, t := range m.transactions {
		if t.Topoheight > topoheight {
			delete(m.transactions, h)
		}
	}
	return nil
}

func (m *memStorage) TransactionsAbove(topoheight uint64) ([]entry.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entry.Transaction
	for _, t := range m.transactions {
		if t.Topoheight >= topoheight {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStorage) TxCache() (storage.TxCache, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txCache, m.txCacheSet, nil
}

func (m *memStorage) ClearTxCache() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCacheSet = false
	m.txCache = storage.TxCache{}
	return nil
}

func (m *memStorage) Close() error { return nil }

var _ storage.Storage = (*memStorage)(nil)

// fakeAPI is a scriptable daemon.API double: tests mutate its fields
// directly between calls instead of driving it through a real transport.
type fakeAPI struct {
	info daemon.InfoResult

	blocksByTopoheight map[uint64]daemon.BlockResponse
	headersByTopoheight map[uint64]daemon.BlockHeader

	balances            map[walletcrypto.Hash]daemon.BalanceResult
	balancesAtTopoheight map[walletcrypto.Hash]map[uint64]daemon.BalanceVersion

	accountAssets []walletcrypto.Hash
	assetMeta     map[walletcrypto.Hash]daemon.AssetResult
	nonce         uint64
	executedIn    map[walletcrypto.Hash]walletcrypto.Hash

	newBlock            chan daemon.NewBlockEvent
	blockOrdered        chan daemon.BlockOrderedEvent
	transactionOrphaned chan daemon.TransactionOrphanedEvent
	connLost            chan struct{}
	connRestored        chan struct{}

	online int32
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		blocksByTopoheight:   make(map[uint64]daemon.BlockResponse),
		headersByTopoheight:  make(map[uint64]daemon.BlockHeader),
		balances:             make(map[walletcrypto.Hash]daemon.BalanceResult),
		balancesAtTopoheight: make(map[walletcrypto.Hash]map[uint64]daemon.BalanceVersion),
		assetMeta:            make(map[walletcrypto.Hash]daemon.AssetResult),
		executedIn:           make(map[walletcrypto.Hash]walletcrypto.Hash),
		newBlock:             make(chan daemon.NewBlockEvent, 4),
		blockOrdered:         make(chan daemon.BlockOrderedEvent, 4),
		transactionOrphaned:  make(chan daemon.TransactionOrphanedEvent, 4),
		connLost:             make(chan struct{}, 1),
		connRestored:         make(chan struct{}, 1),
	}
}

func (f *fakeAPI) GetInfo() (daemon.InfoResult, error) { return f.info, nil }

func (f *fakeAPI) GetBlockAtTopoheight(topoheight uint64) (daemon.BlockHeader, error) {
	h, ok := f.headersByTopoheight[topoheight]
	if !ok {
		return daemon.BlockHeader{}, storage.ErrNotFound
	}
	return h, nil
}

func (f *fakeAPI) GetBlockWithTxsAtTopoheight(topoheight uint64) (daemon.BlockResponse, error) {
	b, ok := f.blocksByTopoheight[topoheight]
	if !ok {
		return daemon.BlockResponse{}, storage.ErrNotFound
	}
	return b, nil
}

func (f *fakeAPI) GetBalance(addr string, assetHash walletcrypto.Hash) (daemon.BalanceResult, error) {
	b, ok := f.balances[assetHash]
	if !ok {
		return daemon.BalanceResult{}, storage.ErrNotFound
	}
	return b, nil
}

func (f *fakeAPI) GetBalanceAtTopoheight(addr string, assetHash walletcrypto.Hash, topoheight uint64) (daemon.BalanceVersion, error) {
	v, ok := f.balancesAtTopoheight[assetHash][topoheight]
	if !ok {
		return daemon.BalanceVersion{}, storage.ErrNotFound
	}
	return v, nil
}

func (f *fakeAPI) GetNonce(addr string) (daemon.NonceResult, error) {
	return daemon.NonceResult{Nonce: f.nonce}, nil
}

func (f *fakeAPI) GetTransactionExecutor(hash walletcrypto.Hash) (daemon.TransactionExecutor, error) {
	return daemon.TransactionExecutor{}, storage.ErrNotFound
}

func (f *fakeAPI) GetVersion() (string, error) { return "test", nil }

func (f *fakeAPI) GetAccountAssets(addr string) ([]walletcrypto.Hash, error) {
	return f.accountAssets, nil
}

func (f *fakeAPI) GetAsset(assetHash walletcrypto.Hash) (daemon.AssetResult, error) {
	return f.assetMeta[assetHash], nil
}

func (f *fakeAPI) IsTxExecutedInBlock(txHash, blockHash walletcrypto.Hash) (bool, error) {
	return f.executedIn[txHash] == blockHash, nil
}

func (f *fakeAPI) OnNewBlock() <-chan daemon.NewBlockEvent { return f.newBlock }
func (f *fakeAPI) OnBlockOrdered() <-chan daemon.BlockOrderedEvent { return f.blockOrdered }
func (f *fakeAPI) OnTransactionOrphaned() <-chan daemon.TransactionOrphanedEvent {
	return f.transactionOrphaned
}
func (f *fakeAPI) ConnectionLost() <-chan struct{}     { return f.connLost }
func (f *fakeAPI) ConnectionRestored() <-chan struct{} { return f.connRestored }
func (f *fakeAPI) IsOnline() bool                      { return atomic.LoadInt32(&f.online) == 1 }

func (f *fakeAPI) Connect() error {
	atomic.StoreInt32(&f.online, 1)
	return nil
}

func (f *fakeAPI) Shutdown() {
	atomic.StoreInt32(&f.online, 0)
}

var _ daemon.API = (*fakeAPI)(nil)

// identityDecryptor treats compressed bytes as already-decompressed and
// reads amounts back out of an 8-byte big-endian encoding, so tests can
// assert on plaintext values without real ElGamal key material.
type identityDecryptor struct{}

func (identityDecryptor) DecompressCommitment(c walletcrypto.CompressedCommitment) (walletcrypto.Commitment, error) {
	return walletcrypto.NewCommitment([]byte(c)), nil
}

func (identityDecryptor) DecompressHandle(h walletcrypto.CompressedHandle) (walletcrypto.Handle, error) {
	return walletcrypto.NewHandle([]byte(h)), nil
}

func (identityDecryptor) DecryptAmount(ct walletcrypto.Ciphertext) (uint64, error) {
	return binary.BigEndian.Uint64(ct.Commitment.Bytes()), nil
}

func (identityDecryptor) DecryptCiphertext(ct walletcrypto.CompressedCiphertext) (uint64, error) {
	return binary.BigEndian.Uint64(ct), nil
}

func (identityDecryptor) DecryptExtraData(ciphertext []byte, handle walletcrypto.Handle, role walletcrypto.Role) ([]byte, error) {
	return ciphertext, nil
}

var _ walletcrypto.Decryptor = identityDecryptor{}

// fakeWallet wires a memStorage, a fixed address/network, and a recording
// event sink together into the Wallet seam.
type fakeWallet struct {
	store     *memStorage
	network   walletcrypto.Network
	address   walletcrypto.Address
	decryptor walletcrypto.Decryptor

	mu     sync.Mutex
	events []Event
}

func newFakeWallet(network walletcrypto.Network, address walletcrypto.Address) *fakeWallet {
	return &fakeWallet{
		store:     newMemStorage(),
		network:   network,
		address:   address,
		decryptor: identityDecryptor{},
	}
}

func (f *fakeWallet) Storage() storage.Storage         { return f.store }
func (f *fakeWallet) Network() walletcrypto.Network    { return f.network }
func (f *fakeWallet) Address() walletcrypto.Address    { return f.address }
func (f *fakeWallet) Decryptor() walletcrypto.Decryptor { return f.decryptor }

func (f *fakeWallet) Dispatch(evt Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

func (f *fakeWallet) dispatched() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out
}

var _ Wallet = (*fakeWallet)(nil)

func amountBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
