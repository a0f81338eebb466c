// Package storage defines the persistence contract the chain synchronization
// core reads and writes against, and a concrete implementation backed by
// btcsuite/btcwallet/walletdb's bucketed key-value transactions.
package storage

import (
	"errors"

	"github.com/duskline/duskwallet/asset"
	"github.com/duskline/duskwallet/entry"
	"github.com/duskline/duskwallet/walletcrypto"
)

// ErrNotFound is returned by lookup methods when the requested record does
// not exist.
var ErrNotFound = errors.New("storage: not found")

// ChangeRecord is one entry of the changes index: the hash of the block that
// was ordered at topoheight. The Checkpoint Locator walks these backward,
// from the wallet's synced topoheight toward genesis, looking for the first
// one that still matches the daemon's view of the DAG.
type ChangeRecord struct {
	Topoheight uint64
	BlockHash  walletcrypto.Hash
}

// BalanceRecord is one stored version of an asset's homomorphic balance
// ciphertext, linked to the previous version the way the daemon links its
// own balance-version chain.
type BalanceRecord struct {
	Topoheight         uint64
	Ciphertext         walletcrypto.CompressedCiphertext
	PreviousTopoheight *uint64

	// Plaintext is the cached decryption of Ciphertext, per the data
	// model's "balance record" entity: the ciphertext is authoritative,
	// the plaintext is a cached decryption.
	Plaintext uint64
}

// TxCache is the bookkeeping record of the last transaction the wallet
// itself broadcast, invalidated wholesale by an orphan event naming its
// hash.
type TxCache struct {
	LastTxHashCreated walletcrypto.Hash
}

// Storage is the full persistence contract of the chain synchronization
// core. A concrete implementation must make every mutating method
// transactionally atomic with respect to the synced topoheight it advances
// alongside.
type Storage interface {
	// SyncedTopoheight returns the topoheight the wallet's local view is
	// currently synced to, and the hash of the block ordered there.
	SyncedTopoheight() (uint64, walletcrypto.Hash, error)

	// SetSyncedTopoheight atomically advances (or rewinds, during a reorg)
	// the wallet's synced topoheight and records a changes-index entry for
	// it.
	SetSyncedTopoheight(topoheight uint64, blockHash walletcrypto.Hash) error

	// HasTopBlockHash reports whether a synced topoheight/hash pair has
	// ever been persisted, distinguishing a genuinely fresh wallet from
	// one synced to topoheight 0.
	HasTopBlockHash() (bool, error)

	// AddChange records a changes-index entry without moving the synced
	// topoheight, used by the Checkpoint Locator to backfill a missing
	// entry at its chosen checkpoint.
	AddChange(topoheight uint64, blockHash walletcrypto.Hash) error

	// ChangeAt returns the changes-index entry recorded at topoheight.
	ChangeAt(topoheight uint64) (ChangeRecord, error)

	// HighestChangeBelow returns the highest changes-index entry strictly
	// below topoheight.
	HighestChangeBelow(topoheight uint64) (ChangeRecord, error)

	// DeleteChangesAbove removes every changes-index entry strictly above
	// topoheight, used when a reorg invalidates them. It reports whether
	// any entry was deleted.
	DeleteChangesAbove(topoheight uint64) (bool, error)

	// Nonce returns the wallet's last-seen local nonce.
	Nonce() (uint64, error)

	// SetNonce sets the wallet's last-seen local nonce.
	SetNonce(nonce uint64) error

	// TrackAsset records an asset as tracked by this wallet. It is
	// idempotent.
	TrackAsset(a asset.WithData) error

	// Assets returns every tracked asset.
	Assets() ([]asset.WithData, error)

	// AssetByHash returns the tracked asset identified by hash.
	AssetByHash(hash walletcrypto.Hash) (asset.WithData, error)

	// ContainsAsset reports whether hash is already tracked.
	ContainsAsset(hash walletcrypto.Hash) (bool, error)

	// DeleteAssets wipes every tracked asset, used when an account is
	// found to be unregistered.
	DeleteAssets() error

	// SetBalance records a new balance version for asset at topoheight,
	// linked to previousTopoheight.
	SetBalance(assetHash walletcrypto.Hash, rec BalanceRecord) error

	// LatestBalance returns the most recently recorded balance version of
	// assetHash.
	LatestBalance(assetHash walletcrypto.Hash) (BalanceRecord, error)

	// BalanceAt returns the balance version of assetHash recorded at
	// exactly topoheight.
	BalanceAt(assetHash walletcrypto.Hash, topoheight uint64) (BalanceRecord, error)

	// HasAnyBalance reports whether any asset has a stored balance
	// record.
	HasAnyBalance() (bool, error)

	// DeleteBalances wipes every stored balance record, used when an
	// account is found to be unregistered.
	DeleteBalances() error

	// UnconfirmedBalance looks up a cached plaintext decryption of
	// ciphertext for assetHash, populated by the wallet's own
	// transaction-construction path (out of scope here, but consumed).
	UnconfirmedBalance(assetHash walletcrypto.Hash, ciphertext walletcrypto.CompressedCiphertext) (uint64, bool, error)

	// SaveTransaction persists a ledger entry, keyed by its hash.
	SaveTransaction(tx entry.Transaction) error

	// HasTransaction reports whether hash is already stored, the
	// deduplication gate invariant 5 requires.
	HasTransaction(hash walletcrypto.Hash) (bool, error)

	// Transaction returns the ledger entry identified by hash.
	Transaction(hash walletcrypto.Hash) (entry.Transaction, error)

	// DeleteTransaction removes the ledger entry identified by hash, used
	// when a transaction is orphaned or rewound by a reorg.
	DeleteTransaction(hash walletcrypto.Hash) error

	// DeleteTransactionsAbove removes every stored ledger entry strictly
	// above topoheight, used during reorg cleanup.
	DeleteTransactionsAbove(topoheight uint64) error

	// TransactionsAbove returns every stored ledger entry at or above
	// topoheight, used to unwind history above a new checkpoint during a
	// reorg.
	TransactionsAbove(topoheight uint64) ([]entry.Transaction, error)

	// TxCache returns the wallet's last-broadcast-transaction bookkeeping
	// record, if any.
	TxCache() (TxCache, bool, error)

	// ClearTxCache wipes the tx cache record.
	ClearTxCache() error

	// Close releases the underlying database handle.
	Close() error
}
