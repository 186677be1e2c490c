package chainadapter

import (
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// lockIDArgs mirrors Solidity's abi.encode packing of
// (address,address,bytes32,uint256,address,uint256,uint256): originator,
// beneficiary, hashLock, timelock, token, value, nonce.
var lockIDArgs = mustArguments(
	abi.Argument{Type: mustType("address")},
	abi.Argument{Type: mustType("address")},
	abi.Argument{Type: mustType("bytes32")},
	abi.Argument{Type: mustType("uint256")},
	abi.Argument{Type: mustType("address")},
	abi.Argument{Type: mustType("uint256")},
	abi.Argument{Type: mustType("uint256")},
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

func mustArguments(args ...abi.Argument) abi.Arguments {
	return abi.Arguments(args)
}

// lockIDMinter mints process-lifetime-unique lock ids via a monotonic
// counter, so two locks submitted within the same wall-clock tick never
// collide.
type lockIDMinter struct {
	nonce uint64
}

func (m *lockIDMinter) next(originator, beneficiary common.Address, hashLock [32]byte, timelock uint64, token common.Address, value *big.Int) ([32]byte, error) {
	nonce := atomic.AddUint64(&m.nonce, 1)

	packed, err := lockIDArgs.Pack(
		originator,
		beneficiary,
		hashLock,
		new(big.Int).SetUint64(timelock),
		token,
		value,
		new(big.Int).SetUint64(nonce),
	)
	if err != nil {
		return [32]byte{}, err
	}

	var id [32]byte
	copy(id[:], crypto.Keccak256(packed))
	return id, nil
}
