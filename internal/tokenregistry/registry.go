// Package tokenregistry holds the static set of chains, tokens, and swap
// pairs the resolver is willing to act on. It is pure and does no I/O: all
// values are centralized here so they are never scattered across the
// codebase.
package tokenregistry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ChainParams describes one EVM-compatible chain the resolver supports.
type ChainParams struct {
	Name          string // logical chain name used throughout swap records, e.g. "base-sepolia"
	ChainID       uint64
	NativeSymbol  string // symbol used for the chain's native asset, e.g. "ETH"
	Confirmations uint64 // confirmation depth required before a lock/claim/refund is final
}

// Token describes a token on a specific chain.
type Token struct {
	Chain    string
	Symbol   string
	Address  common.Address // zero address means the chain's native asset
	Decimals uint8
}

// IsNative reports whether this token is the chain's native asset.
func (t Token) IsNative() bool {
	return t.Address == (common.Address{})
}

// Pair identifies a permitted (source, target) swap direction by chain.
type Pair struct {
	SourceChain string
	TargetChain string
}

// Registry is an immutable, in-memory view of supported chains, tokens, and pairs.
type Registry struct {
	chains map[string]ChainParams
	tokens map[string]map[string]Token // chain -> symbol -> Token
	pairs  map[Pair]bool
}

// Builder accumulates entries before producing an immutable Registry.
type Builder struct {
	chains map[string]ChainParams
	tokens map[string]map[string]Token
	pairs  map[Pair]bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		chains: make(map[string]ChainParams),
		tokens: make(map[string]map[string]Token),
		pairs:  make(map[Pair]bool),
	}
}

// AddChain registers a chain's parameters.
func (b *Builder) AddChain(p ChainParams) *Builder {
	b.chains[p.Name] = p
	return b
}

// AddToken registers a token on a chain.
func (b *Builder) AddToken(t Token) *Builder {
	if b.tokens[t.Chain] == nil {
		b.tokens[t.Chain] = make(map[string]Token)
	}
	b.tokens[t.Chain][t.Symbol] = t
	return b
}

// AllowPair marks a (source, target) chain direction as permitted.
func (b *Builder) AllowPair(source, target string) *Builder {
	b.pairs[Pair{SourceChain: source, TargetChain: target}] = true
	return b
}

// Build finalizes the registry. Returns an error if a token references an
// unregistered chain.
func (b *Builder) Build() (*Registry, error) {
	for chainName := range b.tokens {
		if _, ok := b.chains[chainName]; !ok {
			return nil, fmt.Errorf("tokenregistry: token(s) registered on unknown chain %q", chainName)
		}
	}
	return &Registry{chains: b.chains, tokens: b.tokens, pairs: b.pairs}, nil
}

// Chain looks up a chain's parameters by name.
func (r *Registry) Chain(name string) (ChainParams, bool) {
	p, ok := r.chains[name]
	return p, ok
}

// ChainByID looks up a chain's parameters by EVM chain ID.
func (r *Registry) ChainByID(chainID uint64) (ChainParams, bool) {
	for _, p := range r.chains {
		if p.ChainID == chainID {
			return p, true
		}
	}
	return ChainParams{}, false
}

// Token looks up a token by chain and symbol.
func (r *Registry) Token(chain, symbol string) (Token, bool) {
	byChain, ok := r.tokens[chain]
	if !ok {
		return Token{}, false
	}
	t, ok := byChain[symbol]
	return t, ok
}

// IsPairAllowed reports whether swaps from source to target chain are permitted.
func (r *Registry) IsPairAllowed(source, target string) bool {
	return r.pairs[Pair{SourceChain: source, TargetChain: target}]
}

// Chains returns the names of all registered chains.
func (r *Registry) Chains() []string {
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	return names
}

// WithConfirmations returns a copy of the registry with each named chain's
// confirmation depth replaced by the value in overrides. Chains not present
// in overrides, and everything else about the registry, are unchanged. Used
// to apply an operator's per-chain config on top of the shipped defaults
// without hand-rebuilding the whole token/pair graph.
func (r *Registry) WithConfirmations(overrides map[string]uint64) *Registry {
	chains := make(map[string]ChainParams, len(r.chains))
	for name, p := range r.chains {
		if depth, ok := overrides[name]; ok && depth > 0 {
			p.Confirmations = depth
		}
		chains[name] = p
	}
	return &Registry{chains: chains, tokens: r.tokens, pairs: r.pairs}
}
