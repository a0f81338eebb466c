// Package walletsync implements the chain synchronization core: the
// Lifecycle Controller, Sync Supervisor, Checkpoint Locator, Head-State
// Reconciler, Asset Balance Walker and Block Processor that keep a wallet's
// local ledger in agreement with a DAG daemon whose balances are homomorphic
// ciphertexts.
package walletsync

import (
	"github.com/duskline/duskwallet/storage"
	"github.com/duskline/duskwallet/walletcrypto"
)

// Wallet is the external collaborator this engine is built against: the
// embedding wallet's storage handle, network/address identity, decryption
// capability, and event sink. It is the Go shape of the original network
// handler's `Arc<Wallet>` back-reference.
type Wallet interface {
	// Storage returns the wallet's persistence handle.
	Storage() storage.Storage

	// Network returns the wallet's configured network identity.
	Network() walletcrypto.Network

	// Address returns the wallet's own address.
	Address() walletcrypto.Address

	// Decryptor returns the wallet's cryptographic collaborator.
	Decryptor() walletcrypto.Decryptor

	// Dispatch hands an event to the wallet's event sink. Implementations
	// must not block the calling goroutine for long; the sync engine
	// delivers events synchronously from within its single task.
	Dispatch(Event)
}
