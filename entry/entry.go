// Package entry defines the transaction ledger entries a wallet persists:
// the tagged Coinbase/Burn/Outgoing/Incoming variants of spec.md §3, and
// their wire (de)serialization.
package entry

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/duskline/duskwallet/walletcrypto"
)

// Kind tags which variant an EntryData holds.
type Kind uint8

const (
	// KindCoinbase marks a block reward paid to this wallet.
	KindCoinbase Kind = iota
	// KindBurn marks an owned burn transaction.
	KindBurn
	// KindOutgoing marks a transaction this wallet sent.
	KindOutgoing
	// KindIncoming marks a transaction this wallet received.
	KindIncoming
)

// TransferOut is one destination of an Outgoing entry.
type TransferOut struct {
	Destination walletcrypto.Address
	Asset       walletcrypto.Hash
	Amount      uint64
	ExtraData   []byte // nil if absent or undecryptable
}

// TransferIn is one credited transfer of an Incoming entry.
type TransferIn struct {
	Asset     walletcrypto.Hash
	Amount    uint64
	ExtraData []byte // nil if absent or undecryptable
}

// Data is the tagged variant payload of a TransactionEntry. Exactly one of
// the per-kind fields is meaningful, selected by Kind.
type Data struct {
	Kind Kind

	// KindCoinbase
	Reward uint64

	// KindBurn
	BurnAsset  walletcrypto.Hash
	BurnAmount uint64

	// KindOutgoing
	TransfersOut []TransferOut
	Fee          uint64
	Nonce        uint64

	// KindIncoming
	From         walletcrypto.Address
	TransfersIn  []TransferIn
}

// Coinbase builds a Coinbase entry payload.
func Coinbase(reward uint64) Data {
	return Data{Kind: KindCoinbase, Reward: reward}
}

// Burn builds a Burn entry payload.
func Burn(asset walletcrypto.Hash, amount uint64) Data {
	return Data{Kind: KindBurn, BurnAsset: asset, BurnAmount: amount}
}

// Outgoing builds an Outgoing entry payload.
func Outgoing(transfers []TransferOut, fee, nonce uint64) Data {
	return Data{Kind: KindOutgoing, TransfersOut: transfers, Fee: fee, Nonce: nonce}
}

// Incoming builds an Incoming entry payload.
func Incoming(from walletcrypto.Address, transfers []TransferIn) Data {
	return Data{Kind: KindIncoming, From: from, TransfersIn: transfers}
}

// Transaction is a single ledger entry: a transaction hash, the topoheight
// it was persisted at, and its tagged payload. Uniquely identified by Hash
// (invariant 5: a transaction is never stored twice).
type Transaction struct {
	Hash       walletcrypto.Hash
	Topoheight uint64
	Data       Data
}

// New builds a Transaction entry.
func New(hash walletcrypto.Hash, topoheight uint64, data Data) Transaction {
	return Transaction{Hash: hash, Topoheight: topoheight, Data: data}
}

var errShortRead = errors.New("entry: short read while decoding transaction entry")

// Serialize encodes the entry to its storage wire form. The format is a
// flat, hand-rolled binary layout in the style of the daemon's own wire
// types rather than a reflection-based codec, so storage records stay
// stable across Go struct layout changes.
func (t Transaction) Serialize() []byte {
	var buf bytes.Buffer
	buf.Write(t.Hash[:])
	writeUint64(&buf, t.Topoheight)
	buf.WriteByte(byte(t.Data.Kind))

	switch t.Data.Kind {
	case KindCoinbase:
		writeUint64(&buf, t.Data.Reward)
	case KindBurn:
		buf.Write(t.Data.BurnAsset[:])
		writeUint64(&buf, t.Data.BurnAmount)
	case KindOutgoing:
		writeUint64(&buf, t.Data.Fee)
		writeUint64(&buf, t.Data.Nonce)
		writeUint32(&buf, uint32(len(t.Data.TransfersOut)))
		for _, tr := range t.Data.TransfersOut {
			writeAddress(&buf, tr.Destination)
			buf.Write(tr.Asset[:])
			writeUint64(&buf, tr.Amount)
			writeBytes(&buf, tr.ExtraData)
		}
	case KindIncoming:
		writeAddress(&buf, t.Data.From)
		writeUint32(&buf, uint32(len(t.Data.TransfersIn)))
		for _, tr := range t.Data.TransfersIn {
			buf.Write(tr.Asset[:])
			writeUint64(&buf, tr.Amount)
			writeBytes(&buf, tr.ExtraData)
		}
	}

	return buf.Bytes()
}

// Deserialize decodes an entry previously produced by Serialize.
func Deserialize(raw []byte) (Transaction, error) {
	r := bytes.NewReader(raw)
	var t Transaction

	if _, err := io.ReadFull(r, t.Hash[:]); err != nil {
		return t, fmt.Errorf("%w: hash: %v", errShortRead, err)
	}
	topo, err := readUint64(r)
	if err != nil {
		return t, fmt.Errorf("%w: topoheight: %v", errShortRead, err)
	}
	t.Topoheight = topo

	kindByte, err := r.ReadByte()
	if err != nil {
		return t, fmt.Errorf("%w: kind: %v", errShortRead, err)
	}
	t.Data.Kind = Kind(kindByte)

	switch t.Data.Kind {
	case KindCoinbase:
		t.Data.Reward, err = readUint64(r)
	case KindBurn:
		if _, e := io.ReadFull(r, t.Data.BurnAsset[:]); e != nil {
			return t, fmt.Errorf("%w: burn asset: %v", errShortRead, e)
		}
		t.Data.BurnAmount, err = readUint64(r)
	case KindOutgoing:
		if t.Data.Fee, err = readUint64(r); err != nil {
			break
		}
		if t.Data.Nonce, err = readUint64(r); err != nil {
			break
		}
		var n uint32
		if n, err = readUint32(r); err != nil {
			break
		}
		t.Data.TransfersOut = make([]TransferOut, n)
		for i := range t.Data.TransfersOut {
			tr := &t.Data.TransfersOut[i]
			if tr.Destination, err = readAddress(r); err != nil {
				return t, err
			}
			if _, e := io.ReadFull(r, tr.Asset[:]); e != nil {
				return t, fmt.Errorf("%w: transfer asset: %v", errShortRead, e)
			}
			if tr.Amount, err = readUint64(r); err != nil {
				return t, err
			}
			if tr.ExtraData, err = readBytes(r); err != nil {
				return t, err
			}
		}
	case KindIncoming:
		if t.Data.From, err = readAddress(r); err != nil {
			break
		}
		var n uint32
		if n, err = readUint32(r); err != nil {
			break
		}
		t.Data.TransfersIn = make([]TransferIn, n)
		for i := range t.Data.TransfersIn {
			tr := &t.Data.TransfersIn[i]
			if _, e := io.ReadFull(r, tr.Asset[:]); e != nil {
				return t, fmt.Errorf("%w: transfer asset: %v", errShortRead, e)
			}
			if tr.Amount, err = readUint64(r); err != nil {
				return t, err
			}
			if tr.ExtraData, err = readBytes(r); err != nil {
				return t, err
			}
		}
	default:
		return t, fmt.Errorf("entry: unknown kind %d", t.Data.Kind)
	}
	if err != nil {
		return t, fmt.Errorf("%w: %v", errShortRead, err)
	}

	return t, nil
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func writeAddress(buf *bytes.Buffer, a walletcrypto.Address) {
	s := a.String()
	writeBytes(buf, []byte(s))
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// readAddress decodes the wire form written by writeAddress. Addresses are
// serialized as their bech32 string form and re-parsed; this round-trips
// through the wallet's address-encoding collaborator rather than this
// package carrying key-parsing logic of its own.
func readAddress(r *bytes.Reader) (walletcrypto.Address, error) {
	raw, err := readBytes(r)
	if err != nil {
		return walletcrypto.Address{}, err
	}
	return walletcrypto.ParseAddress(string(raw))
}
