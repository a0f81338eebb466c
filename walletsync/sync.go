package walletsync

import (
	"github.com/duskline/duskwallet/daemon"
)

// syncOnce implements the single full reconciliation pass described by
// §4.3: locate the checkpoint, reconcile head state, optionally process a
// pushed block directly, optionally walk asset balances, then advance the
// synced topoheight.
func syncOnce(w Wallet, api daemon.API, newBlockEvent *daemon.NewBlockEvent) error {
	store := w.Storage()

	cp, err := locateCheckpoint(w, api)
	if err != nil {
		return err
	}

	walkBlocks := false

	if cp.SyncBack {
		more, err := reconcileHeadState(w, api, nil, nil, true)
		if err != nil {
			return err
		}
		walkBlocks = walkBlocks || more
	}

	if newBlockEvent != nil {
		if newBlockEvent.Topoheight == nil {
			log.Debugf("Ignoring DAG-orphaned new_block event for %s", newBlockEvent.Hash)
		} else {
			result, err := processBlock(w, api, newBlockEvent.Block, *newBlockEvent.Topoheight)
			if err != nil {
				return err
			}
			if result != nil {
				storedNonce, err := store.Nonce()
				if err != nil {
					return err
				}
				var nonceHint *uint64
				if result.SawOwnerTransaction && result.HighestOwnerNonce > storedNonce {
					n := result.HighestOwnerNonce
					nonceHint = &n
				}
				more, err := reconcileHeadState(w, api, result.ChangedAssets, nonceHint, false)
				if err != nil {
					return err
				}
				walkBlocks = walkBlocks || more
			}
		}
	} else {
		walkBlocks = true
	}

	if walkBlocks {
		if err := walkAllAssets(w, api, cp.Maximum); err != nil {
			return err
		}
	}

	if err := store.SetSyncedTopoheight(cp.DaemonTopoheight, cp.DaemonBlockHash); err != nil {
		return err
	}
	w.Dispatch(NewTopoHeight(cp.DaemonTopoheight))

	return nil
}

// walkAllAssets invokes the Asset Balance Walker once per tracked asset,
// sharing the processed-topoheight set and highest-nonce cell across every
// asset per §9's open question: walks are sequential, not concurrent.
func walkAllAssets(w Wallet, api daemon.API, minTopoheight uint64) error {
	assets, err := w.Storage().Assets()
	if err != nil {
		return err
	}

	processed := make(map[uint64]bool)
	nonceCell := &highestNonceCell{}

	for _, a := range assets {
		if err := walkAssetBalances(w, api, processed, a.Hash, minTopoheight, true, nonceCell); err != nil {
			return err
		}
	}
	return nil
}
