package tokenregistry

import "github.com/ethereum/go-ethereum/common"

// Default returns the registry of chains, tokens, and pairs this resolver
// ships with. Operators may still restrict the set further via config, but
// the registry itself is not editable at runtime: adding a chain means
// adding it here.
func Default() (*Registry, error) {
	b := NewBuilder().
		AddChain(ChainParams{Name: "ethereum-sepolia", ChainID: 11155111, NativeSymbol: "ETH", Confirmations: 3}).
		AddChain(ChainParams{Name: "base-sepolia", ChainID: 84532, NativeSymbol: "ETH", Confirmations: 2}).
		AddChain(ChainParams{Name: "arbitrum-sepolia", ChainID: 421614, NativeSymbol: "ETH", Confirmations: 2}).
		AddChain(ChainParams{Name: "bsc-testnet", ChainID: 97, NativeSymbol: "BNB", Confirmations: 6}).
		AddChain(ChainParams{Name: "polygon-amoy", ChainID: 80002, NativeSymbol: "POL", Confirmations: 10})

	b.AddToken(Token{Chain: "ethereum-sepolia", Symbol: "ETH", Address: common.Address{}, Decimals: 18})
	b.AddToken(Token{Chain: "base-sepolia", Symbol: "ETH", Address: common.Address{}, Decimals: 18})
	b.AddToken(Token{Chain: "arbitrum-sepolia", Symbol: "ETH", Address: common.Address{}, Decimals: 18})
	b.AddToken(Token{Chain: "bsc-testnet", Symbol: "BNB", Address: common.Address{}, Decimals: 18})
	b.AddToken(Token{Chain: "polygon-amoy", Symbol: "POL", Address: common.Address{}, Decimals: 18})

	b.AddToken(Token{Chain: "ethereum-sepolia", Symbol: "USDC", Address: common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"), Decimals: 6})
	b.AddToken(Token{Chain: "base-sepolia", Symbol: "USDC", Address: common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"), Decimals: 6})
	b.AddToken(Token{Chain: "arbitrum-sepolia", Symbol: "USDC", Address: common.HexToAddress("0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d"), Decimals: 6})

	// Permitted swap directions. The pool only holds inventory on a subset of
	// chains; every other chain can only ever be a source.
	for _, source := range []string{"ethereum-sepolia", "arbitrum-sepolia", "bsc-testnet", "polygon-amoy"} {
		b.AllowPair(source, "base-sepolia")
	}
	b.AllowPair("base-sepolia", "ethereum-sepolia")
	b.AllowPair("base-sepolia", "arbitrum-sepolia")

	return b.Build()
}
