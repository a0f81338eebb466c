// Package asset describes the set of fungible assets a wallet tracks
// balances for, beyond the chain's native asset.
package asset

import "github.com/duskline/duskwallet/walletcrypto"

// WithData pairs an asset's identifying hash with its declared metadata, as
// reported by the daemon's get_asset RPC. It is emitted wholesale on the
// NewAsset event so the embedding wallet never has to look the asset back
// up.
type WithData struct {
	Hash     walletcrypto.Hash
	Decimals uint8
}

// New builds a WithData from an asset hash and its decimal precision.
func New(hash walletcrypto.Hash, decimals uint8) WithData {
	return WithData{Hash: hash, Decimals: decimals}
}

// Native is the chain's native asset hash: the all-zero hash, matching the
// daemon's convention for the coin that coinbase rewards are paid out in.
var Native = walletcrypto.Hash{}

