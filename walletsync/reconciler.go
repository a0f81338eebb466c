package walletsync

import (
	"fmt"

	"github.com/duskline/duskwallet/asset"
	"github.com/duskline/duskwallet/daemon"
	"github.com/duskline/duskwallet/storage"
	"github.com/duskline/duskwallet/walletcrypto"
)

// reconcileHeadState implements the Head-State Reconciler: it refreshes the
// wallet's nonce and latest-ciphertext-per-asset from the daemon, discovers
// new assets, and reports whether a block-level resync is required.
func reconcileHeadState(w Wallet, api daemon.API, assetsFilter []walletcrypto.Hash, nonceHint *uint64, syncNonce bool) (bool, error) {
	store := w.Storage()
	addr := w.Address().String()

	var newNonce *uint64
	switch {
	case nonceHint != nil:
		newNonce = nonceHint
	case syncNonce:
		result, err := api.GetNonce(addr)
		if err != nil {
			hasBalances, berr := store.HasAnyBalance()
			if berr != nil {
				return false, berr
			}
			if hasBalances {
				if err := store.DeleteBalances(); err != nil {
					return false, err
				}
				if err := store.DeleteAssets(); err != nil {
					return false, err
				}
			}
			return false, nil
		}
		n := result.Nonce
		newNonce = &n
	}

	assetHashes := assetsFilter
	if assetHashes == nil {
		fetched, err := api.GetAccountAssets(addr)
		if err != nil {
			return false, fmt.Errorf("%w: get_account_assets: %v", ErrDaemonAPI, err)
		}
		assetHashes = fetched
	}

	type observed struct {
		asset      walletcrypto.Hash
		ciphertext walletcrypto.CompressedCiphertext
		topoheight uint64
	}
	var fresh []observed

	for _, assetHash := range assetHashes {
		known, err := store.ContainsAsset(assetHash)
		if err != nil {
			return false, err
		}
		if !known {
			meta, err := api.GetAsset(assetHash)
			if err != nil {
				return false, fmt.Errorf("%w: get_asset: %v", ErrDaemonAPI, err)
			}
			a := asset.New(assetHash, meta.Decimals)
			if err := store.TrackAsset(a); err != nil {
				return false, err
			}
			w.Dispatch(NewAsset(a))
		}

		balance, err := api.GetBalance(addr, assetHash)
		if err != nil {
			return false, fmt.Errorf("%w: get_balance: %v", ErrDaemonAPI, err)
		}
		ciphertext, _ := balance.Version.Consume()
		fresh = append(fresh, observed{asset: assetHash, ciphertext: ciphertext, topoheight: balance.Topoheight})
	}

	walkBlocks := false

	if newNonce != nil {
		stored, err := store.Nonce()
		if err != nil {
			return false, err
		}
		if *newNonce != stored {
			if err := store.SetNonce(*newNonce); err != nil {
				return false, err
			}
			walkBlocks = true
		}
	}

	for _, obs := range fresh {
		current, latestErr := store.LatestBalance(obs.asset)
		if latestErr != nil && latestErr != storage.ErrNotFound {
			return false, latestErr
		}
		hadPrior := latestErr == nil
		if hadPrior && string(current.Ciphertext) == string(obs.ciphertext) {
			continue
		}

		plaintext, err := resolvePlaintext(w, store, obs.asset, obs.ciphertext)
		if err != nil {
			return false, err
		}

		rec := storage.BalanceRecord{
			Topoheight: obs.topoheight,
			Ciphertext: obs.ciphertext,
			Plaintext:  plaintext,
		}
		if hadPrior {
			prev := current.Topoheight
			rec.PreviousTopoheight = &prev
		}
		if err := store.SetBalance(obs.asset, rec); err != nil {
			return false, err
		}
		w.Dispatch(BalanceChanged(obs.asset, plaintext))
		walkBlocks = true
	}

	return walkBlocks, nil
}

// resolvePlaintext prefers an unconfirmed-balance cache hit keyed by the
// compressed ciphertext over a fresh trial decryption.
func resolvePlaintext(w Wallet, store storage.Storage, assetHash walletcrypto.Hash, ciphertext walletcrypto.CompressedCiphertext) (uint64, error) {
	if cached, ok, err := store.UnconfirmedBalance(assetHash, ciphertext); err != nil {
		return 0, err
	} else if ok {
		return cached, nil
	}
	plaintext, err := w.Decryptor().DecryptCiphertext(ciphertext)
	if err != nil {
		return 0, fmt.Errorf("walletsync: decrypt balance for asset %s: %w", assetHash, err)
	}
	return plaintext, nil
}
