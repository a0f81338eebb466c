package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcwallet/walletdb"

	"github.com/duskline/duskwallet/asset"
	"github.com/duskline/duskwallet/entry"
	"github.com/duskline/duskwallet/walletcrypto"
)

var (
	bucketMeta      = []byte("meta")
	bucketChanges   = []byte("changes")
	bucketAssets    = []byte("assets")
	bucketBalances  = []byte("balances")
	bucketUnconf    = []byte("unconfirmed-balances")
	bucketTxns      = []byte("transactions")
	bucketTxnsByTop = []byte("transactions-by-topoheight")

	keySyncedTopoheight = []byte("synced-topoheight")
	keySyncedBlockHash  = []byte("synced-block-hash")
	keyNonce            = []byte("nonce")
	keyTxCacheLastHash  = []byte("tx-cache-last-hash")

	latestBalancePrefix = []byte("latest-")
)

// WalletDB is a Storage backed by a walletdb.DB, laid out as one top-level
// bucket per concern and binary-encoded, big-endian keys so range scans stay
// ordered by topoheight.
type WalletDB struct {
	db walletdb.DB
}

// Open wraps an already-created walletdb.DB, creating the top-level buckets
// this package needs if they are not already present.
func Open(db walletdb.DB) (*WalletDB, error) {
	w := &WalletDB{db: db}
	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		buckets := [][]byte{bucketMeta, bucketChanges, bucketAssets, bucketBalances, bucketUnconf, bucketTxns, bucketTxnsByTop}
		for _, name := range buckets {
			if _, err := tx.CreateTopLevelBucket(name); err != nil {
				return fmt.Errorf("storage: create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func topoheightKey(topoheight uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, topoheight)
	return key
}

func assetBucketKey(assetHash walletcrypto.Hash, topoheight uint64) []byte {
	key := make([]byte, 32+8)
	copy(key[:32], assetHash[:])
	binary.BigEndian.PutUint64(key[32:], topoheight)
	return key
}

func latestBalanceKey(assetHash walletcrypto.Hash) []byte {
	return append(append([]byte(nil), latestBalancePrefix...), assetHash[:]...)
}

func unconfirmedKey(assetHash walletcrypto.Hash, ciphertext walletcrypto.CompressedCiphertext) []byte {
	key := make([]byte, 32+len(ciphertext))
	copy(key[:32], assetHash[:])
	copy(key[32:], ciphertext)
	return key
}

// SyncedTopoheight implements Storage.
func (w *WalletDB) SyncedTopoheight() (uint64, walletcrypto.Hash, error) {
	var topoheight uint64
	var hash walletcrypto.Hash
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		meta := tx.ReadBucket(bucketMeta)
		raw := meta.Get(keySyncedTopoheight)
		if raw == nil {
			return ErrNotFound
		}
		topoheight = binary.BigEndian.Uint64(raw)
		copy(hash[:], meta.Get(keySyncedBlockHash))
		return nil
	})
	return topoheight, hash, err
}

// HasTopBlockHash implements Storage.
func (w *WalletDB) HasTopBlockHash() (bool, error) {
	var has bool
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		has = tx.ReadBucket(bucketMeta).Get(keySyncedBlockHash) != nil
		return nil
	})
	return has, err
}

// SetSyncedTopoheight implements Storage.
func (w *WalletDB) SetSyncedTopoheight(topoheight uint64, blockHash walletcrypto.Hash) error {
	return walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		meta := tx.ReadWriteBucket(bucketMeta)
		if err := meta.Put(keySyncedTopoheight, topoheightKey(topoheight)); err != nil {
			return err
		}
		if err := meta.Put(keySyncedBlockHash, blockHash[:]); err != nil {
			return err
		}
		changes := tx.ReadWriteBucket(bucketChanges)
		return changes.Put(topoheightKey(topoheight), blockHash[:])
	})
}

// AddChange implements Storage.
func (w *WalletDB) AddChange(topoheight uint64, blockHash walletcrypto.Hash) error {
	return walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		return tx.ReadWriteBucket(bucketChanges).Put(topoheightKey(topoheight), blockHash[:])
	})
}

// ChangeAt implements Storage.
func (w *WalletDB) ChangeAt(topoheight uint64) (ChangeRecord, error) {
	var rec ChangeRecord
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		changes := tx.ReadBucket(bucketChanges)
		raw := changes.Get(topoheightKey(topoheight))
		if raw == nil {
			return ErrNotFound
		}
		rec.Topoheight = topoheight
		copy(rec.BlockHash[:], raw)
		return nil
	})
	return rec, err
}

// HighestChangeBelow implements Storage.
func (w *WalletDB) HighestChangeBelow(topoheight uint64) (ChangeRecord, error) {
	var rec ChangeRecord
	found := false
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		changes := tx.ReadBucket(bucketChanges)
		return changes.ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				return nil
			}
			h := binary.BigEndian.Uint64(k)
			if h >= topoheight {
				return nil
			}
			if !found || h > rec.Topoheight {
				rec.Topoheight = h
				copy(rec.BlockHash[:], v)
				found = true
			}
			return nil
		})
	})
	if err != nil {
		return rec, err
	}
	if !found {
		return rec, ErrNotFound
	}
	return rec, nil
}

// DeleteChangesAbove implements Storage.
func (w *WalletDB) DeleteChangesAbove(topoheight uint64) (bool, error) {
	var deletedAny bool
	err := walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		changes := tx.ReadWriteBucket(bucketChanges)
		var stale [][]byte
		err := changes.ForEach(func(k, v []byte) error {
			if len(k) == 8 && binary.BigEndian.Uint64(k) > topoheight {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := changes.Delete(k); err != nil {
				return err
			}
			deletedAny = true
		}
		return nil
	})
	return deletedAny, err
}

// Nonce implements Storage.
func (w *WalletDB) Nonce() (uint64, error) {
	var nonce uint64
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		raw := tx.ReadBucket(bucketMeta).Get(keyNonce)
		if raw == nil {
			return nil
		}
		nonce = binary.BigEndian.Uint64(raw)
		return nil
	})
	return nonce, err
}

// SetNonce implements Storage.
func (w *WalletDB) SetNonce(nonce uint64) error {
	return walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		return tx.ReadWriteBucket(bucketMeta).Put(keyNonce, topoheightKey(nonce))
	})
}

// TrackAsset implements Storage.
func (w *WalletDB) TrackAsset(a asset.WithData) error {
	return walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		return tx.ReadWriteBucket(bucketAssets).Put(a.Hash[:], []byte{a.Decimals})
	})
}

// Assets implements Storage.
func (w *WalletDB) Assets() ([]asset.WithData, error) {
	var out []asset.WithData
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		return tx.ReadBucket(bucketAssets).ForEach(func(k, v []byte) error {
			var hash walletcrypto.Hash
			copy(hash[:], k)
			decimals := uint8(0)
			if len(v) > 0 {
				decimals = v[0]
			}
			out = append(out, asset.New(hash, decimals))
			return nil
		})
	})
	return out, err
}

// AssetByHash implements Storage.
func (w *WalletDB) AssetByHash(hash walletcrypto.Hash) (asset.WithData, error) {
	var a asset.WithData
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		v := tx.ReadBucket(bucketAssets).Get(hash[:])
		if v == nil {
			return ErrNotFound
		}
		decimals := uint8(0)
		if len(v) > 0 {
			decimals = v[0]
		}
		a = asset.New(hash, decimals)
		return nil
	})
	return a, err
}

// ContainsAsset implements Storage.
func (w *WalletDB) ContainsAsset(hash walletcrypto.Hash) (bool, error) {
	var has bool
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		has = tx.ReadBucket(bucketAssets).Get(hash[:]) != nil
		return nil
	})
	return has, err
}

// DeleteAssets implements Storage.
func (w *WalletDB) DeleteAssets() error {
	return walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		assets := tx.ReadWriteBucket(bucketAssets)
		var keys [][]byte
		if err := assets.ForEach(func(k, v []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := assets.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetBalance implements Storage.
func (w *WalletDB) SetBalance(assetHash walletcrypto.Hash, rec BalanceRecord) error {
	return walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		balances := tx.ReadWriteBucket(bucketBalances)
		buf := encodeBalanceValue(rec)
		key := assetBucketKey(assetHash, rec.Topoheight)
		if err := balances.Put(key, buf); err != nil {
			return err
		}
		return balances.Put(latestBalanceKey(assetHash), key)
	})
}

func encodeBalanceValue(rec BalanceRecord) []byte {
	buf := make([]byte, 0, len(rec.Ciphertext)+4+1+8+8)
	var lenB [4]byte
	binary.BigEndian.PutUint32(lenB[:], uint32(len(rec.Ciphertext)))
	buf = append(buf, lenB[:]...)
	buf = append(buf, rec.Ciphertext...)
	buf = append(buf, topoheightKey(rec.Plaintext)...)
	if rec.PreviousTopoheight != nil {
		buf = append(buf, 1)
		buf = append(buf, topoheightKey(*rec.PreviousTopoheight)...)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func decodeBalanceValue(topoheight uint64, raw []byte) (BalanceRecord, error) {
	if len(raw) < 4 {
		return BalanceRecord{}, fmt.Errorf("storage: truncated balance record")
	}
	ctLen := binary.BigEndian.Uint32(raw[:4])
	rest := raw[4:]
	if uint32(len(rest)) < ctLen+8+1 {
		return BalanceRecord{}, fmt.Errorf("storage: truncated balance record")
	}
	ciphertext := append(walletcrypto.CompressedCiphertext(nil), rest[:ctLen]...)
	rest = rest[ctLen:]
	plaintext := binary.BigEndian.Uint64(rest[:8])
	rest = rest[8:]
	rec := BalanceRecord{Topoheight: topoheight, Ciphertext: ciphertext, Plaintext: plaintext}
	if rest[0] == 1 {
		if len(rest) < 9 {
			return BalanceRecord{}, fmt.Errorf("storage: truncated balance record")
		}
		prev := binary.BigEndian.Uint64(rest[1:9])
		rec.PreviousTopoheight = &prev
	}
	return rec, nil
}

// LatestBalance implements Storage.
func (w *WalletDB) LatestBalance(assetHash walletcrypto.Hash) (BalanceRecord, error) {
	var rec BalanceRecord
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		balances := tx.ReadBucket(bucketBalances)
		key := balances.Get(latestBalanceKey(assetHash))
		if key == nil {
			return ErrNotFound
		}
		raw := balances.Get(key)
		if raw == nil {
			return ErrNotFound
		}
		topoheight := binary.BigEndian.Uint64(key[32:])
		decoded, err := decodeBalanceValue(topoheight, raw)
		if err != nil {
			return err
		}
		rec = decoded
		return nil
	})
	return rec, err
}

// BalanceAt implements Storage.
func (w *WalletDB) BalanceAt(assetHash walletcrypto.Hash, topoheight uint64) (BalanceRecord, error) {
	var rec BalanceRecord
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		balances := tx.ReadBucket(bucketBalances)
		raw := balances.Get(assetBucketKey(assetHash, topoheight))
		if raw == nil {
			return ErrNotFound
		}
		decoded, err := decodeBalanceValue(topoheight, raw)
		if err != nil {
			return err
		}
		rec = decoded
		return nil
	})
	return rec, err
}

// HasAnyBalance implements Storage.
func (w *WalletDB) HasAnyBalance() (bool, error) {
	var has bool
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		return tx.ReadBucket(bucketBalances).ForEach(func(k, v []byte) error {
			if len(k) > len(latestBalancePrefix) && string(k[:len(latestBalancePrefix)]) == string(latestBalancePrefix) {
				has = true
			}
			return nil
		})
	})
	return has, err
}

// DeleteBalances implements Storage.
func (w *WalletDB) DeleteBalances() error {
	return walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		balances := tx.ReadWriteBucket(bucketBalances)
		var keys [][]byte
		if err := balances.ForEach(func(k, v []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := balances.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// UnconfirmedBalance implements Storage.
func (w *WalletDB) UnconfirmedBalance(assetHash walletcrypto.Hash, ciphertext walletcrypto.CompressedCiphertext) (uint64, bool, error) {
	var amount uint64
	var ok bool
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		raw := tx.ReadBucket(bucketUnconf).Get(unconfirmedKey(assetHash, ciphertext))
		if raw == nil {
			return nil
		}
		amount = binary.BigEndian.Uint64(raw)
		ok = true
		return nil
	})
	return amount, ok, err
}

// SaveTransaction implements Storage.
func (w *WalletDB) SaveTransaction(t entry.Transaction) error {
	return walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		raw := t.Serialize()
		if err := tx.ReadWriteBucket(bucketTxns).Put(t.Hash[:], raw); err != nil {
			return err
		}
		idxKey := make([]byte, 8+32)
		binary.BigEndian.PutUint64(idxKey[:8], t.Topoheight)
		copy(idxKey[8:], t.Hash[:])
		return tx.ReadWriteBucket(bucketTxnsByTop).Put(idxKey, nil)
	})
}

// HasTransaction implements Storage.
func (w *WalletDB) HasTransaction(hash walletcrypto.Hash) (bool, error) {
	var has bool
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		has = tx.ReadBucket(bucketTxns).Get(hash[:]) != nil
		return nil
	})
	return has, err
}

// Transaction implements Storage.
func (w *WalletDB) Transaction(hash walletcrypto.Hash) (entry.Transaction, error) {
	var t entry.Transaction
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		raw := tx.ReadBucket(bucketTxns).Get(hash[:])
		if raw == nil {
			return ErrNotFound
		}
		decoded, err := entry.Deserialize(raw)
		if err != nil {
			return err
		}
		t = decoded
		return nil
	})
	return t, err
}

// DeleteTransaction implements Storage.
func (w *WalletDB) DeleteTransaction(hash walletcrypto.Hash) error {
	return walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		return deleteTransactionLocked(tx, hash)
	})
}

func deleteTransactionLocked(tx walletdb.ReadWriteTx, hash walletcrypto.Hash) error {
	txns := tx.ReadWriteBucket(bucketTxns)
	raw := txns.Get(hash[:])
	if raw == nil {
		return nil
	}
	t, err := entry.Deserialize(raw)
	if err != nil {
		return err
	}
	if err := txns.Delete(hash[:]); err != nil {
		return err
	}
	idxKey := make([]byte, 8+32)
	binary.BigEndian.PutUint64(idxKey[:8], t.Topoheight)
	copy(idxKey[8:], hash[:])
	return tx.ReadWriteBucket(bucketTxnsByTop).Delete(idxKey)
}

// DeleteTransactionsAbove implements Storage.
func (w *WalletDB) DeleteTransactionsAbove(topoheight uint64) error {
	return walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		idx := tx.ReadWriteBucket(bucketTxnsByTop)
		var hashes []walletcrypto.Hash
		err := idx.ForEach(func(k, v []byte) error {
			if len(k) != 8+32 {
				return nil
			}
			if binary.BigEndian.Uint64(k[:8]) <= topoheight {
				return nil
			}
			var h walletcrypto.Hash
			copy(h[:], k[8:])
			hashes = append(hashes, h)
			return nil
		})
		if err != nil {
			return err
		}
		for _, h := range hashes {
			if err := deleteTransactionLocked(tx, h); err != nil {
				return err
			}
		}
		return nil
	})
}

// TransactionsAbove implements Storage.
func (w *WalletDB) TransactionsAbove(topoheight uint64) ([]entry.Transaction, error) {
	var out []entry.Transaction
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		txns := tx.ReadBucket(bucketTxns)
		idx := tx.ReadBucket(bucketTxnsByTop)
		return idx.ForEach(func(k, v []byte) error {
			if len(k) != 8+32 {
				return nil
			}
			if binary.BigEndian.Uint64(k[:8]) < topoheight {
				return nil
			}
			raw := txns.Get(k[8:])
			if raw == nil {
				return nil
			}
			t, err := entry.Deserialize(raw)
			if err != nil {
				return err
			}
			out = append(out, t)
			return nil
		})
	})
	return out, err
}

// TxCache implements Storage.
func (w *WalletDB) TxCache() (TxCache, bool, error) {
	var cache TxCache
	var ok bool
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		raw := tx.ReadBucket(bucketMeta).Get(keyTxCacheLastHash)
		if raw == nil {
			return nil
		}
		copy(cache.LastTxHashCreated[:], raw)
		ok = true
		return nil
	})
	return cache, ok, err
}

// ClearTxCache implements Storage.
func (w *WalletDB) ClearTxCache() error {
	return walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		return tx.ReadWriteBucket(bucketMeta).Delete(keyTxCacheLastHash)
	})
}

// Close implements Storage.
func (w *WalletDB) Close() error {
	return w.db.Close()
}

var _ Storage = (*WalletDB)(nil)
