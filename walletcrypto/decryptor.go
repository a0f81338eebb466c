package walletcrypto

import "errors"

// ErrDecompress is returned by Decryptor.DecompressCommitment or
// DecompressHandle when the compressed wire bytes are malformed. Per
// spec.md §4.7, a decompression failure drops only the offending transfer,
// never the whole block.
var ErrDecompress = errors.New("walletcrypto: failed to decompress ciphertext component")

// Decryptor is the cryptographic collaborator the embedding wallet supplies.
// It is never implemented by this repository: ciphertext decompression,
// ElGamal trial decryption, and extra-data decryption are the external
// primitives spec.md §1 names as out of scope.
type Decryptor interface {
	// DecompressCommitment turns a transfer's wire commitment into its
	// usable form. It returns ErrDecompress on malformed input.
	DecompressCommitment(CompressedCommitment) (Commitment, error)

	// DecompressHandle turns one side of a transfer's wire handle into
	// its usable form. It returns ErrDecompress on malformed input.
	DecompressHandle(CompressedHandle) (Handle, error)

	// DecryptAmount trial-decrypts a ciphertext built from a
	// decompressed commitment and handle, returning the plaintext
	// amount in atomic units.
	DecryptAmount(Ciphertext) (uint64, error)

	// DecryptCiphertext decrypts a full balance ciphertext (as reported
	// by the daemon for an asset) to its plaintext amount.
	DecryptCiphertext(CompressedCiphertext) (uint64, error)

	// DecryptExtraData attempts to open a transfer's optional encrypted
	// extra data payload using the given handle and role. Failure is
	// acceptable and silent at the call site (spec.md §9): extra data is
	// not part of the ledger integrity contract.
	DecryptExtraData(ciphertext []byte, handle Handle, role Role) ([]byte, error)
}
