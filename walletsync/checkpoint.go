package walletsync

import (
	"fmt"

	"github.com/duskline/duskwallet/daemon"
	"github.com/duskline/duskwallet/storage"
	"github.com/duskline/duskwallet/walletcrypto"
)

// checkpoint is the result of locateCheckpoint: the daemon's current tip,
// the highest topoheight wallet and daemon still agree on, and whether the
// wallet needs a head-state resync to catch up to it.
type checkpoint struct {
	DaemonTopoheight uint64
	DaemonBlockHash  walletcrypto.Hash
	Maximum          uint64
	SyncBack         bool
}

// locateCheckpoint implements the Checkpoint Locator: it finds the highest
// topoheight on which the wallet and daemon still agree, deleting wallet
// state strictly above it along the way.
func locateCheckpoint(w Wallet, api daemon.API) (checkpoint, error) {
	store := w.Storage()

	info, err := api.GetInfo()
	if err != nil {
		return checkpoint{}, fmt.Errorf("%w: get_info: %v", ErrDaemonAPI, err)
	}
	if info.Network != w.Network() {
		return checkpoint{}, ErrNetworkMismatch
	}

	hadTopBlockHash, err := store.HasTopBlockHash()
	if err != nil {
		return checkpoint{}, err
	}

	syncedTopoheight, syncedHash, err := store.SyncedTopoheight()
	if err != nil && err != storage.ErrNotFound {
		return checkpoint{}, err
	}

	if !hadTopBlockHash {
		return finishCheckpoint(w, store, info, 0, hadTopBlockHash)
	}

	if syncedTopoheight == info.Topoheight && syncedHash == info.TopBlockHash {
		return checkpoint{
			DaemonTopoheight: info.Topoheight,
			DaemonBlockHash:  info.TopBlockHash,
			Maximum:          syncedTopoheight,
			SyncBack:         false,
		}, nil
	}

	if syncedTopoheight > info.Topoheight {
		return finishCheckpoint(w, store, info, 0, hadTopBlockHash)
	}

	if info.PrunedTopoheight != nil && syncedTopoheight > *info.PrunedTopoheight {
		header, err := api.GetBlockAtTopoheight(syncedTopoheight)
		if err != nil {
			return checkpoint{}, fmt.Errorf("%w: get_block_at_topoheight: %v", ErrDaemonAPI, err)
		}
		if header.Hash == syncedHash {
			return checkpoint{
				DaemonTopoheight: info.Topoheight,
				DaemonBlockHash:  info.TopBlockHash,
				Maximum:          syncedTopoheight,
				SyncBack:         false,
			}, nil
		}
	}

	probe := syncedTopoheight
	prunedFloor := uint64(0)
	if info.PrunedTopoheight != nil {
		prunedFloor = *info.PrunedTopoheight
	}

	for {
		if probe == 0 {
			break
		}
		if info.PrunedTopoheight != nil && probe < prunedFloor {
			break
		}

		rec, err := store.HighestChangeBelow(probe + 1)
		if err != nil && err != storage.ErrNotFound {
			return checkpoint{}, err
		}
		if err == storage.ErrNotFound {
			probe = 0
			break
		}

		header, err := api.GetBlockAtTopoheight(rec.Topoheight)
		if err != nil {
			return checkpoint{}, fmt.Errorf("%w: get_block_at_topoheight: %v", ErrDaemonAPI, err)
		}
		if header.Hash == rec.BlockHash {
			probe = rec.Topoheight
			break
		}
		if rec.Topoheight == 0 {
			probe = 0
			break
		}
		probe = rec.Topoheight - 1
	}

	return finishCheckpoint(w, store, info, probe, hadTopBlockHash)
}

func finishCheckpoint(w Wallet, store storage.Storage, info daemon.InfoResult, maximum uint64, hadPriorTop bool) (checkpoint, error) {
	deletedAny, err := store.DeleteChangesAbove(maximum)
	if err != nil {
		return checkpoint{}, err
	}
	if deletedAny {
		if err := store.DeleteTransactionsAbove(maximum); err != nil {
			return checkpoint{}, err
		}
	}

	var hashAtMaximum walletcrypto.Hash
	if maximum == 0 {
		hashAtMaximum = walletcrypto.Hash{}
	} else {
		rec, err := store.ChangeAt(maximum)
		if err == nil {
			hashAtMaximum = rec.BlockHash
		} else if err == storage.ErrNotFound {
			// Backfilled below once known.
		} else {
			return checkpoint{}, err
		}
	}

	if _, err := store.ChangeAt(maximum); err == storage.ErrNotFound {
		if err := store.AddChange(maximum, hashAtMaximum); err != nil {
			return checkpoint{}, err
		}
	}

	if err := store.SetSyncedTopoheight(maximum, hashAtMaximum); err != nil {
		return checkpoint{}, err
	}

	if hadPriorTop {
		w.Dispatch(Rescan(maximum))
	}

	return checkpoint{
		DaemonTopoheight: info.Topoheight,
		DaemonBlockHash:  info.TopBlockHash,
		Maximum:          maximum,
		SyncBack:         true,
	}, nil
}
