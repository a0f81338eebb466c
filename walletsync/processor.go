package walletsync

import (
	"fmt"

	"github.com/duskline/duskwallet/asset"
	"github.com/duskline/duskwallet/daemon"
	"github.com/duskline/duskwallet/entry"
	"github.com/duskline/duskwallet/walletcrypto"
)

// processResult is what the Block Processor reports back to its callers:
// the set of assets whose balance may have changed, and the owner's
// highest-observed-nonce-plus-one, if any owner-sourced transaction was
// seen.
type processResult struct {
	ChangedAssets         []walletcrypto.Hash
	HighestOwnerNonce     uint64
	SawOwnerTransaction   bool
}

// processBlock implements the Block Processor: it scans one block,
// classifies each transaction, trial-decrypts transfer ciphertexts
// addressed to or from the wallet, and persists new ledger entries.
func processBlock(w Wallet, api daemon.API, block daemon.BlockResponse, topoheight uint64) (*processResult, error) {
	if block.Miner.Network() != w.Network() {
		return nil, ErrNetworkMismatch
	}

	store := w.Storage()
	own := w.Address()

	changed := make(map[walletcrypto.Hash]struct{})
	markedTopoheight := false
	result := &processResult{}

	markChanged := func(assetHash walletcrypto.Hash) {
		changed[assetHash] = struct{}{}
	}

	if block.Miner.Equal(own) && block.MinerReward != nil {
		data := entry.Coinbase(*block.MinerReward)
		t := entry.New(block.Hash, topoheight, data)
		has, err := store.HasTransaction(t.Hash)
		if err != nil {
			return nil, err
		}
		if !has {
			if err := store.SaveTransaction(t); err != nil {
				return nil, err
			}
			if err := store.AddChange(topoheight, block.Hash); err != nil {
				return nil, err
			}
			markedTopoheight = true
			markChanged(asset.Native)
			w.Dispatch(NewTransaction(t))
		}
	}

	for _, tx := range block.Transactions {
		isOwner := tx.Source.Equal(own)

		var data entry.Data
		yield := false

		switch tx.Data.Kind {
		case daemon.TxDataBurn:
			if isOwner {
				data = entry.Burn(tx.Data.BurnAsset, tx.Data.BurnAmount)
				yield = true
			}
		case daemon.TxDataTransfers:
			var transfersOut []entry.TransferOut
			var transfersIn []entry.TransferIn

			for _, tr := range tx.Data.Transfers {
				isRecipient := tr.Destination.Equal(own)
				if !isOwner && !isRecipient {
					continue
				}

				handle := tr.ReceiverHandle
				role := walletcrypto.RoleReceiver
				if isOwner {
					handle = tr.SenderHandle
					role = walletcrypto.RoleSender
				}

				commitment, err := w.Decryptor().DecompressCommitment(tr.Commitment)
				if err != nil {
					log.Warnf("Dropping transfer in tx %s: bad commitment: %v", tx.Hash, err)
					continue
				}
				decompressedHandle, err := w.Decryptor().DecompressHandle(handle)
				if err != nil {
					log.Warnf("Dropping transfer in tx %s: bad handle: %v", tx.Hash, err)
					continue
				}

				var extraData []byte
				if tr.ExtraData != nil {
					extraData, _ = w.Decryptor().DecryptExtraData(tr.ExtraData, decompressedHandle, role)
				}

				ciphertext := walletcrypto.NewCiphertext(commitment, decompressedHandle)
				amount, err := w.Decryptor().DecryptAmount(ciphertext)
				if err != nil {
					log.Warnf("Dropping transfer in tx %s: trial decryption failed: %v", tx.Hash, err)
					continue
				}

				markChanged(tr.Asset)

				if isOwner {
					transfersOut = append(transfersOut, entry.TransferOut{
						Destination: tr.Destination,
						Asset:       tr.Asset,
						Amount:      amount,
						ExtraData:   extraData,
					})
				} else {
					transfersIn = append(transfersIn, entry.TransferIn{
						Asset:     tr.Asset,
						Amount:    amount,
						ExtraData: extraData,
					})
				}
			}

			if isOwner {
				data = entry.Outgoing(transfersOut, tx.Fee, tx.Nonce)
				yield = true
			} else if len(transfersIn) > 0 {
				data = entry.Incoming(tx.Source, transfersIn)
				yield = true
			}
		}

		if !yield {
			continue
		}

		has, err := store.HasTransaction(tx.Hash)
		if err != nil {
			return nil, err
		}
		if has {
			continue
		}

		entryTopoheight := topoheight
		executed, err := api.IsTxExecutedInBlock(tx.Hash, block.Hash)
		if err != nil {
			return nil, fmt.Errorf("%w: is_tx_executed_in_block: %v", ErrDaemonAPI, err)
		}
		if !executed {
			executor, err := api.GetTransactionExecutor(tx.Hash)
			if err != nil {
				log.Warnf("Skipping tx %s: no known executor: %v", tx.Hash, err)
				continue
			}
			entryTopoheight = executor.BlockTopoheight
		}

		if isOwner {
			result.SawOwnerTransaction = true
			if tx.Nonce+1 > result.HighestOwnerNonce {
				result.HighestOwnerNonce = tx.Nonce + 1
			}
		}

		t := entry.New(tx.Hash, entryTopoheight, data)
		if err := store.SaveTransaction(t); err != nil {
			return nil, err
		}
		if !markedTopoheight {
			if err := store.AddChange(topoheight, block.Hash); err != nil {
				return nil, err
			}
			markedTopoheight = true
		}
		w.Dispatch(NewTransaction(t))
	}

	if !markedTopoheight || len(changed) == 0 {
		return nil, nil
	}

	for a := range changed {
		result.ChangedAssets = append(result.ChangedAssets, a)
	}
	return result, nil
}
