package walletsync

import (
	"github.com/duskline/duskwallet/asset"
	"github.com/duskline/duskwallet/entry"
	"github.com/duskline/duskwallet/walletcrypto"
)

// EventKind tags which variant an Event holds.
type EventKind uint8

const (
	// EventOnline fires when the sync task (re)starts and the daemon
	// connection is up.
	EventOnline EventKind = iota
	// EventOffline fires when the sync task stops, for any reason.
	EventOffline
	// EventNewTopoHeight fires at the end of every successful sync pass.
	EventNewTopoHeight
	// EventRescan fires when the Checkpoint Locator rewound the wallet's
	// synced topoheight.
	EventRescan
	// EventNewAsset fires when the Head-State Reconciler discovers an
	// asset the wallet had not tracked before.
	EventNewAsset
	// EventNewTransaction fires whenever a new ledger entry is persisted.
	EventNewTransaction
	// EventBalanceChanged fires whenever an asset's stored balance
	// changes.
	EventBalanceChanged
)

// Event is the tagged variant taxonomy surfaced to the embedding wallet.
// Exactly one group of fields is meaningful, selected by Kind.
type Event struct {
	Kind EventKind

	// EventNewTopoHeight
	Topoheight uint64

	// EventRescan
	StartTopoheight uint64

	// EventNewAsset
	Asset asset.WithData

	// EventNewTransaction
	Transaction entry.Transaction

	// EventBalanceChanged
	BalanceAsset      walletcrypto.Hash
	BalancePlaintext  uint64
}

// Online builds an Online event.
func Online() Event { return Event{Kind: EventOnline} }

// Offline builds an Offline event.
func Offline() Event { return Event{Kind: EventOffline} }

// NewTopoHeight builds a NewTopoHeight event.
func NewTopoHeight(topoheight uint64) Event {
	return Event{Kind: EventNewTopoHeight, Topoheight: topoheight}
}

// Rescan builds a Rescan event.
func Rescan(startTopoheight uint64) Event {
	return Event{Kind: EventRescan, StartTopoheight: startTopoheight}
}

// NewAsset builds a NewAsset event.
func NewAsset(a asset.WithData) Event {
	return Event{Kind: EventNewAsset, Asset: a}
}

// NewTransaction builds a NewTransaction event.
func NewTransaction(tx entry.Transaction) Event {
	return Event{Kind: EventNewTransaction, Transaction: tx}
}

// BalanceChanged builds a BalanceChanged event.
func BalanceChanged(assetHash walletcrypto.Hash, plaintext uint64) Event {
	return Event{Kind: EventBalanceChanged, BalanceAsset: assetHash, BalancePlaintext: plaintext}
}
