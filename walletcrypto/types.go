// Package walletcrypto defines the opaque value types that flow between the
// sync engine and the wallet's cryptographic collaborator. It intentionally
// does not implement ElGamal trial decryption, commitment/handle
// decompression, or extra-data decryption: those remain the embedding
// wallet's responsibility, reached through the Decryptor interface below.
package walletcrypto

import (
	"fmt"

	"github.com/decred/dcrd/bech32"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v3"
)

// Hash identifies a transaction, a block, or an asset. It reuses the
// daemon's 32-byte hash shape rather than inventing a new one.
type Hash = chainhash.Hash

// Network discriminates a wallet/daemon's chain identity. Invariant 6 of the
// synchronization contract requires the wallet and daemon to agree on it.
type Network uint8

const (
	// Mainnet is the production network.
	Mainnet Network = iota
	// Testnet is the public test network.
	Testnet
	// Devnet is a local or private development network.
	Devnet
)

// String implements fmt.Stringer.
func (n Network) String() string {
	switch n {
	case Mainnet:
		return "mainnet"
	case Testnet:
		return "testnet"
	case Devnet:
		return "devnet"
	default:
		return "unknown"
	}
}

// addressHRPs maps a Network to the bech32 human-readable part used when
// printing an Address.
var addressHRPs = map[Network]string{
	Mainnet: "dk",
	Testnet: "dkt",
	Devnet:  "dkd",
}

// Address identifies an account on the chain: a public key plus the network
// it was derived for. Address derivation itself remains an external
// collaborator (spec.md §1); this type is only the wire/comparison shape the
// sync engine needs.
type Address struct {
	network   Network
	publicKey *secp256k1.PublicKey
}

// NewAddress builds an Address from a public key and the network it belongs
// to.
func NewAddress(network Network, pub *secp256k1.PublicKey) Address {
	return Address{network: network, publicKey: pub}
}

// Network returns the network this address was derived for.
func (a Address) Network() Network {
	return a.network
}

// PublicKey returns the underlying public key.
func (a Address) PublicKey() *secp256k1.PublicKey {
	return a.publicKey
}

// Equal reports whether two addresses refer to the same public key on the
// same network.
func (a Address) Equal(o Address) bool {
	if a.network != o.network {
		return false
	}
	if a.publicKey == nil || o.publicKey == nil {
		return a.publicKey == o.publicKey
	}
	return a.publicKey.IsEqual(o.publicKey)
}

// String renders the address using the bech32 encoding of its network and
// compressed public key, matching the convention the daemon's RPC responses
// use over the wire.
func (a Address) String() string {
	if a.publicKey == nil {
		return ""
	}
	hrp := addressHRPs[a.network]
	conv, err := bech32.ConvertBits(a.publicKey.SerializeCompressed(), 8, 5, true)
	if err != nil {
		return ""
	}
	encoded, err := bech32.Encode(hrp, conv)
	if err != nil {
		return ""
	}
	return encoded
}

// ParseAddress decodes the bech32 form produced by Address.String, matching
// the human-readable parts declared in addressHRPs.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, nil
	}
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("walletcrypto: invalid address: %w", err)
	}
	var network Network
	found := false
	for n, h := range addressHRPs {
		if h == hrp {
			network = n
			found = true
			break
		}
	}
	if !found {
		return Address{}, fmt.Errorf("walletcrypto: unknown address prefix %q", hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("walletcrypto: invalid address encoding: %w", err)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return Address{}, fmt.Errorf("walletcrypto: invalid address public key: %w", err)
	}
	return Address{network: network, publicKey: pub}, nil
}

// CompressedCommitment is the compressed wire form of the commitment half of
// an ElGamal ciphertext, as carried in a transfer's `commitment` field.
type CompressedCommitment []byte

// CompressedHandle is the compressed wire form of one side (sender or
// receiver) of an ElGamal ciphertext handle.
type CompressedHandle []byte

// CompressedCiphertext is the compressed wire form of a full balance
// ciphertext, as cached in storage and compared across syncs.
type CompressedCiphertext []byte

// Commitment is the decompressed commitment component of a ciphertext.
// Decompression itself is delegated to Decryptor.DecompressCommitment.
type Commitment struct {
	raw []byte
}

// NewCommitment wraps an already-decompressed commitment's raw
// representation. The representation is opaque to this package.
func NewCommitment(raw []byte) Commitment { return Commitment{raw: raw} }

// Bytes returns the opaque decompressed representation.
func (c Commitment) Bytes() []byte { return c.raw }

// Handle is the decompressed handle component (sender or receiver side) of a
// ciphertext.
type Handle struct {
	raw []byte
}

// NewHandle wraps an already-decompressed handle's raw representation.
func NewHandle(raw []byte) Handle { return Handle{raw: raw} }

// Bytes returns the opaque decompressed representation.
func (h Handle) Bytes() []byte { return h.raw }

// Ciphertext pairs a commitment with one handle, the unit the Decryptor
// trial-decrypts.
type Ciphertext struct {
	Commitment Commitment
	Handle     Handle
}

// NewCiphertext builds a Ciphertext from its two decompressed components.
func NewCiphertext(commitment Commitment, handle Handle) Ciphertext {
	return Ciphertext{Commitment: commitment, Handle: handle}
}

// Role identifies which side of a transfer a ciphertext handle belongs to,
// needed by extra-data decryption (the sender and receiver use different key
// material to open the same envelope).
type Role uint8

const (
	// RoleSender marks the handle/extra-data as openable by the sender.
	RoleSender Role = iota
	// RoleReceiver marks the handle/extra-data as openable by the receiver.
	RoleReceiver
)
