package walletsync

import (
	"context"
	"fmt"

	"github.com/duskline/duskwallet/daemon"
	"github.com/duskline/duskwallet/storage"
)

// runSupervisor implements the Sync Supervisor: one bootstrap sync, then a
// fair select-based multiplex over three daemon event subscriptions and two
// transport-state channels. Any single iteration's failure propagates
// upward and terminates the supervisor.
func runSupervisor(ctx context.Context, w Wallet, api daemon.API) error {
	if err := syncOnce(w, api, nil); err != nil {
		return err
	}

	newBlockCh := api.OnNewBlock()
	blockOrderedCh := api.OnBlockOrdered()
	txOrphanedCh := api.OnTransactionOrphaned()
	connRestored := api.ConnectionRestored()
	connLost := api.ConnectionLost()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt := <-newBlockCh:
			if err := syncOnce(w, api, &evt); err != nil {
				return err
			}

		case evt := <-blockOrderedCh:
			if err := handleBlockOrdered(w, api, evt); err != nil {
				return err
			}

		case evt := <-txOrphanedCh:
			if err := handleTransactionOrphaned(w, evt); err != nil {
				return err
			}

		case <-connRestored:
			if err := syncOnce(w, api, nil); err != nil {
				return err
			}
			w.Dispatch(Online())

		case <-connLost:
			w.Dispatch(Offline())
		}
	}
}

// handleBlockOrdered implements the block_ordered branch of §4.2: if the
// wallet's stored hash at the event's topoheight disagrees, it is treated
// as a reorg and wallet state above it is unwound before the newly ordered
// block is fetched and processed.
func handleBlockOrdered(w Wallet, api daemon.API, evt daemon.BlockOrderedEvent) error {
	store := w.Storage()

	if evt.Topoheight != 0 {
		rec, err := store.ChangeAt(evt.Topoheight)
		if err != nil && err != storage.ErrNotFound {
			return err
		}
		if err == nil && rec.BlockHash != evt.BlockHash {
			if _, err := store.DeleteChangesAbove(evt.Topoheight - 1); err != nil {
				return err
			}
			syncedTopoheight, _, err := store.SyncedTopoheight()
			if err != nil && err != storage.ErrNotFound {
				return err
			}
			if err == nil && syncedTopoheight > evt.Topoheight {
				if err := store.SetSyncedTopoheight(evt.Topoheight, evt.BlockHash); err != nil {
					return err
				}
			}
		}
	}

	block, err := api.GetBlockWithTxsAtTopoheight(evt.Topoheight)
	if err != nil {
		return fmt.Errorf("%w: get_block_with_txs_at_topoheight: %v", ErrDaemonAPI, err)
	}
	_, err = processBlock(w, api, block, evt.Topoheight)
	return err
}

// handleTransactionOrphaned implements the transaction_orphaned branch of
// §4.2: the orphaned transaction is dropped from storage, and the tx cache
// is cleared if it named the same hash.
func handleTransactionOrphaned(w Wallet, evt daemon.TransactionOrphanedEvent) error {
	store := w.Storage()

	has, err := store.HasTransaction(evt.Hash)
	if err != nil {
		return err
	}
	if has {
		if err := store.DeleteTransaction(evt.Hash); err != nil {
			return err
		}
	}

	cache, ok, err := store.TxCache()
	if err != nil {
		return err
	}
	if ok && cache.LastTxHashCreated == evt.Hash {
		if err := store.ClearTxCache(); err != nil {
			return err
		}
	}
	return nil
}
