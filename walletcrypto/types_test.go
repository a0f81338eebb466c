package walletcrypto

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v3"
	"github.com/stretchr/testify/require"
)

func TestNetworkString(t *testing.T) {
	require.Equal(t, "mainnet", Mainnet.String())
	require.Equal(t, "testnet", Testnet.String())
	require.Equal(t, "devnet", Devnet.String())
	require.Equal(t, "unknown", Network(99).String())
}

func TestAddressStringParseRoundTrip(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey()

	for _, net := range []Network{Mainnet, Testnet, Devnet} {
		addr := NewAddress(net, pub)
		encoded := addr.String()
		require.NotEmpty(t, encoded)

		decoded, err := ParseAddress(encoded)
		require.NoError(t, err)
		require.True(t, addr.Equal(decoded))
		require.Equal(t, net, decoded.Network())
	}
}

func TestAddressEmptyRoundTrip(t *testing.T) {
	var zero Address
	require.Equal(t, "", zero.String())

	decoded, err := ParseAddress("")
	require.NoError(t, err)
	require.True(t, zero.Equal(decoded))
}

func TestParseAddressUnknownPrefix(t *testing.T) {
	_, err := ParseAddress("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4")
	require.Error(t, err)
}

func TestAddressEqualDifferentNetworks(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey()

	a := NewAddress(Mainnet, pub)
	b := NewAddress(Testnet, pub)
	require.False(t, a.Equal(b))
}
