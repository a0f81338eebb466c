package daemon

import (
	"github.com/duskline/duskwallet/walletcrypto"
)

// InfoResult is the response of get_info.
type InfoResult struct {
	Topoheight       uint64
	TopBlockHash     walletcrypto.Hash
	PrunedTopoheight *uint64
	Network          walletcrypto.Network
}

// BalanceVersion is one link of an asset's balance-version chain at a given
// topoheight: the ciphertext at that height, and the topoheight of the
// previous version, if any.
type BalanceVersion struct {
	Ciphertext         walletcrypto.CompressedCiphertext
	PreviousTopoheight *uint64
}

// Consume destructures a version the way the Asset Balance Walker needs:
// the ciphertext and the previous topoheight pointer.
func (v BalanceVersion) Consume() (walletcrypto.CompressedCiphertext, *uint64) {
	return v.Ciphertext, v.PreviousTopoheight
}

// BalanceResult is the response of get_balance: the topoheight the returned
// version was recorded at, and the version itself.
type BalanceResult struct {
	Topoheight uint64
	Version    BalanceVersion
}

// BlockHeader is the response of get_block_at_topoheight: just enough to
// drive the Checkpoint Locator's hash comparisons.
type BlockHeader struct {
	Hash walletcrypto.Hash
}

// Transfer is one transfer of a Transfers transaction, as carried over the
// wire by get_block_with_txs_at_topoheight.
type Transfer struct {
	Destination     walletcrypto.Address
	Asset           walletcrypto.Hash
	Commitment      walletcrypto.CompressedCommitment
	SenderHandle    walletcrypto.CompressedHandle
	ReceiverHandle  walletcrypto.CompressedHandle
	ExtraData       []byte // nil if absent
}

// TxDataKind tags a transaction's data variant.
type TxDataKind uint8

const (
	// TxDataBurn tags a Burn transaction.
	TxDataBurn TxDataKind = iota
	// TxDataTransfers tags a Transfers transaction.
	TxDataTransfers
)

// TxData is the tagged data payload of a transaction.
type TxData struct {
	Kind TxDataKind

	// TxDataBurn
	BurnAsset  walletcrypto.Hash
	BurnAmount uint64

	// TxDataTransfers
	Transfers []Transfer
}

// Transaction is one transaction inside a BlockResponse.
type Transaction struct {
	Hash   walletcrypto.Hash
	Source walletcrypto.Address
	Fee    uint64
	Nonce  uint64
	Data   TxData
}

// BlockResponse is the response of get_block_with_txs_at_topoheight.
type BlockResponse struct {
	Hash         walletcrypto.Hash
	Miner        walletcrypto.Address
	MinerReward  *uint64
	Transactions []Transaction
}

// NonceResult is the response of get_nonce.
type NonceResult struct {
	Nonce uint64
}

// AssetResult is the response of get_asset.
type AssetResult struct {
	Decimals uint8
}

// TransactionExecutor is the response of get_transaction_executor.
type TransactionExecutor struct {
	BlockHash       walletcrypto.Hash
	BlockTopoheight uint64
}

// NewBlockEvent is the payload of the on_new_block subscription. Topoheight
// is nil when the block was orphaned by the DAG before being ordered.
type NewBlockEvent struct {
	Hash       walletcrypto.Hash
	Topoheight *uint64
	Block      BlockResponse
}

// BlockOrderedEvent is the payload of the on_block_ordered subscription.
type BlockOrderedEvent struct {
	Topoheight uint64
	BlockHash  walletcrypto.Hash
}

// TransactionOrphanedEvent is the payload of the on_transaction_orphaned
// subscription.
type TransactionOrphanedEvent struct {
	Hash walletcrypto.Hash
}
