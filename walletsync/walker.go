package walletsync

import (
	"fmt"

	"github.com/duskline/duskwallet/daemon"
	"github.com/duskline/duskwallet/storage"
	"github.com/duskline/duskwallet/walletcrypto"
)

// highestNonceCell is the shared, lazily-seeded "highest observed owner
// nonce" cell threaded across every asset walked within one sync pass. Only
// the tip version (first iteration) of each asset's walk may update it.
type highestNonceCell struct {
	seeded bool
	value  uint64
}

// walkAssetBalances implements the Asset Balance Walker: it walks one
// asset's balance-version chain backward from the daemon's tip, invoking
// the Block Processor at every topoheight carrying a balance change, until
// reaching minTopoheight.
func walkAssetBalances(
	w Wallet,
	api daemon.API,
	processedTopoheights map[uint64]bool,
	assetHash walletcrypto.Hash,
	minTopoheight uint64,
	trackBalances bool,
	nonceCell *highestNonceCell,
) error {
	store := w.Storage()
	addr := w.Address().String()

	balance, err := api.GetBalance(addr, assetHash)
	if err != nil {
		return fmt.Errorf("%w: get_balance: %v", ErrDaemonAPI, err)
	}
	if minTopoheight >= balance.Topoheight {
		return nil
	}

	topoheight := balance.Topoheight
	version := balance.Version
	firstIteration := true

	for {
		ciphertext, previousTopoheight := version.Consume()

		var result *processResult
		if !processedTopoheights[topoheight] {
			processedTopoheights[topoheight] = true

			block, err := api.GetBlockWithTxsAtTopoheight(topoheight)
			if err != nil {
				return fmt.Errorf("%w: get_block_with_txs_at_topoheight: %v", ErrDaemonAPI, err)
			}
			result, err = processBlock(w, api, block, topoheight)
			if err != nil {
				return err
			}
		}

		if result != nil && firstIteration && trackBalances {
			if !nonceCell.seeded {
				stored, err := store.Nonce()
				if err != nil {
					return err
				}
				nonceCell.value = stored
				nonceCell.seeded = true
			}
			if result.SawOwnerTransaction && result.HighestOwnerNonce > nonceCell.value {
				nonceCell.value = result.HighestOwnerNonce
				if err := store.SetNonce(nonceCell.value); err != nil {
					return err
				}
			}

			current, latestErr := store.LatestBalance(assetHash)
			if latestErr != nil && latestErr != storage.ErrNotFound {
				return latestErr
			}
			hadPrior := latestErr == nil
			if !hadPrior || string(current.Ciphertext) != string(ciphertext) {
				plaintext, err := resolvePlaintext(w, store, assetHash, ciphertext)
				if err != nil {
					return err
				}
				rec := storage.BalanceRecord{
					Topoheight: topoheight,
					Ciphertext: ciphertext,
					Plaintext:  plaintext,
				}
				if hadPrior {
					prev := current.Topoheight
					rec.PreviousTopoheight = &prev
				}
				if err := store.SetBalance(assetHash, rec); err != nil {
					return err
				}
				w.Dispatch(BalanceChanged(assetHash, plaintext))
			}
		}

		firstIteration = false

		if previousTopoheight == nil || *previousTopoheight <= minTopoheight {
			return nil
		}

		next, err := api.GetBalanceAtTopoheight(addr, assetHash, *previousTopoheight)
		if err != nil {
			return fmt.Errorf("%w: get_balance_at_topoheight: %v", ErrDaemonAPI, err)
		}
		topoheight = *previousTopoheight
		version = next
	}
}
