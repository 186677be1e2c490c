// Package signer holds the operator's per-chain signing keys and hands out
// nonce-stamped transactors, serializing the nonce read; the order in which
// transactions are submitted is left to the caller.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Signer holds one operator key for one chain and hands out TransactOpts
// one at a time, the way the teacher's htlc client built a fresh
// *bind.TransactOpts per call. Two calls made before either transaction
// reaches the node's pending pool receive the same nonce.
type Signer struct {
	mu        sync.Mutex
	chainName string
	chainID   *big.Int
	key       *ecdsa.PrivateKey
	address   common.Address
	client    *ethclient.Client
}

// New loads a signer from a hex-encoded private key (with or without the
// "0x" prefix), matching how operatorSigningKey is supplied per chain.
func New(chainName string, chainID uint64, hexKey string, client *ethclient.Client) (*Signer, error) {
	key, err := crypto.HexToECDSA(trim0x(hexKey))
	if err != nil {
		return nil, fmt.Errorf("signer: parse key for %s: %w", chainName, err)
	}
	return &Signer{
		chainName: chainName,
		chainID:   new(big.Int).SetUint64(chainID),
		key:       key,
		address:   crypto.PubkeyToAddress(key.PublicKey),
		client:    client,
	}, nil
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// Address returns the operator's address on this chain.
func (s *Signer) Address() common.Address {
	return s.address
}

// ChainName returns the logical chain name this signer is scoped to.
func (s *Signer) ChainName() string {
	return s.chainName
}

// Balance returns the operator's native-asset balance.
func (s *Signer) Balance(ctx context.Context) (*big.Int, error) {
	return s.client.BalanceAt(ctx, s.address, nil)
}

// TransactOpts returns a fresh *bind.TransactOpts bound to the next pending
// nonce for this chain. It only guards the nonce read against concurrent
// callers within this process; it does not by itself make submission
// order safe if two goroutines call TransactOpts and then race to submit.
// Callers must still process swaps for a given chain serially, per engine,
// the way the resolver engine does.
func (s *Signer) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("signer: build transactor for %s: %w", s.chainName, err)
	}

	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("signer: fetch nonce for %s: %w", s.chainName, err)
	}
	opts.Nonce = new(big.Int).SetUint64(nonce)
	opts.Context = ctx

	return opts, nil
}
