package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duskline/duskwallet/walletcrypto"
)

func TestEncodeDecodeBalanceValueRoundTrip(t *testing.T) {
	prev := uint64(41)
	rec := BalanceRecord{
		Topoheight:         42,
		Ciphertext:         walletcrypto.CompressedCiphertext{1, 2, 3, 4, 5},
		Plaintext:          1000,
		PreviousTopoheight: &prev,
	}

	encoded := encodeBalanceValue(rec)
	decoded, err := decodeBalanceValue(rec.Topoheight, encoded)
	require.NoError(t, err)
	require.Equal(t, rec.Topoheight, decoded.Topoheight)
	require.Equal(t, rec.Ciphertext, decoded.Ciphertext)
	require.Equal(t, rec.Plaintext, decoded.Plaintext)
	require.NotNil(t, decoded.PreviousTopoheight)
	require.Equal(t, *rec.PreviousTopoheight, *decoded.PreviousTopoheight)
}

func TestEncodeDecodeBalanceValueWithoutPrevious(t *testing.T) {
	rec := BalanceRecord{
		Topoheight: 7,
		Ciphertext: walletcrypto.CompressedCiphertext{9, 9},
		Plaintext:  5,
	}

	encoded := encodeBalanceValue(rec)
	decoded, err := decodeBalanceValue(rec.Topoheight, encoded)
	require.NoError(t, err)
	require.Nil(t, decoded.PreviousTopoheight)
	require.Equal(t, rec.Plaintext, decoded.Plaintext)
}

func TestDecodeBalanceValueTruncated(t *testing.T) {
	_, err := decodeBalanceValue(0, []byte{0, 0, 0, 1})
	require.Error(t, err)
}

func TestTopoheightKeyOrdering(t *testing.T) {
	a := topoheightKey(1)
	b := topoheightKey(2)
	c := topoheightKey(256)
	require.True(t, string(a) < string(b))
	require.True(t, string(b) < string(c))
}

func TestAssetBucketKeyLength(t *testing.T) {
	var hash walletcrypto.Hash
	hash[0] = 0xFF
	key := assetBucketKey(hash, 99)
	require.Len(t, key, 40)
	require.Equal(t, hash[:], key[:32])
}

func TestLatestBalanceKeyPrefixed(t *testing.T) {
	var hash walletcrypto.Hash
	hash[0] = 0x01
	key := latestBalanceKey(hash)
	require.True(t, len(key) > len(latestBalancePrefix))
	require.Equal(t, latestBalancePrefix, key[:len(latestBalancePrefix)])
}
