package tokenregistry

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderRejectsTokenOnUnknownChain(t *testing.T) {
	b := NewBuilder().AddToken(Token{Chain: "nowhere", Symbol: "ETH"})
	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nowhere")
}

func TestBuilderAcceptsMatchingChainAndToken(t *testing.T) {
	b := NewBuilder().
		AddChain(ChainParams{Name: "base-sepolia", ChainID: 84532, NativeSymbol: "ETH", Confirmations: 2}).
		AddToken(Token{Chain: "base-sepolia", Symbol: "ETH", Decimals: 18})

	r, err := b.Build()
	require.NoError(t, err)

	p, ok := r.Chain("base-sepolia")
	require.True(t, ok)
	assert.Equal(t, uint64(84532), p.ChainID)

	tok, ok := r.Token("base-sepolia", "ETH")
	require.True(t, ok)
	assert.True(t, tok.IsNative())
}

func TestChainByID(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	p, ok := r.ChainByID(84532)
	require.True(t, ok)
	assert.Equal(t, "base-sepolia", p.Name)

	_, ok = r.ChainByID(999999999)
	assert.False(t, ok)
}

func TestTokenIsNative(t *testing.T) {
	native := Token{Address: common.Address{}}
	assert.True(t, native.IsNative())

	erc20 := Token{Address: common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")}
	assert.False(t, erc20.IsNative())
}

func TestIsPairAllowed(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	assert.True(t, r.IsPairAllowed("ethereum-sepolia", "base-sepolia"))
	assert.False(t, r.IsPairAllowed("base-sepolia", "bsc-testnet"))
	assert.False(t, r.IsPairAllowed("unknown", "base-sepolia"))
}

func TestDefaultRegistryLooksUpKnownTokens(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	usdc, ok := r.Token("base-sepolia", "USDC")
	require.True(t, ok)
	assert.Equal(t, uint8(6), usdc.Decimals)
	assert.False(t, usdc.IsNative())

	_, ok = r.Token("base-sepolia", "DOGE")
	assert.False(t, ok)
}

func TestWithConfirmationsOverridesOnlyNamedChains(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	patched := r.WithConfirmations(map[string]uint64{"base-sepolia": 9})

	p, ok := patched.Chain("base-sepolia")
	require.True(t, ok)
	assert.Equal(t, uint64(9), p.Confirmations)

	unchanged, ok := patched.Chain("ethereum-sepolia")
	require.True(t, ok)
	original, _ := r.Chain("ethereum-sepolia")
	assert.Equal(t, original.Confirmations, unchanged.Confirmations)

	usdc, ok := patched.Token("base-sepolia", "USDC")
	require.True(t, ok)
	assert.Equal(t, uint8(6), usdc.Decimals)
}

func TestChainsListsAllRegisteredChains(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	names := r.Chains()
	assert.Contains(t, names, "base-sepolia")
	assert.Contains(t, names, "ethereum-sepolia")
	assert.Len(t, names, 5)
}
