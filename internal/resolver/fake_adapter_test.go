package resolver

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-labs/resolverd/internal/chainadapter"
)

// fakeAdapter is an in-memory stand-in for chainadapter.Adapter, letting
// resolver tests drive lock state transitions without an RPC endpoint.
type fakeAdapter struct {
	mu      sync.Mutex
	name    string
	locks   map[[32]byte]chainadapter.Lock
	nonce   uint64
	lockErr error
	claimErr error
	refundErr error
	chainTime uint64
}

func newFakeAdapter(name string) *fakeAdapter {
	return &fakeAdapter{
		name:  name,
		locks: make(map[[32]byte]chainadapter.Lock),
	}
}

func (f *fakeAdapter) ChainName() string { return f.name }

func (f *fakeAdapter) NextLockID(originator, beneficiary common.Address, hashLock [32]byte, timelock uint64, token common.Address, value *big.Int) ([32]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonce++
	var id [32]byte
	id[31] = byte(f.nonce)
	id[0] = hashLock[0]
	return id, nil
}

func (f *fakeAdapter) Lock(ctx context.Context, lockID [32]byte, token common.Address, beneficiary common.Address, hashLock [32]byte, timelock uint64, value *big.Int) (*chainadapter.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	if existing, ok := f.locks[lockID]; ok && existing.State != chainadapter.StateInvalid {
		return nil, chainadapter.ErrDuplicateLockID
	}
	f.locks[lockID] = chainadapter.Lock{
		Token:       token,
		Beneficiary: beneficiary,
		HashLock:    hashLock,
		Timelock:    timelock,
		Value:       new(big.Int).Set(value),
		State:       chainadapter.StateOpen,
	}
	return &chainadapter.TxResult{Hash: common.BytesToHash(lockID[:])}, nil
}

func (f *fakeAdapter) Claim(ctx context.Context, lockID [32]byte, preimage [32]byte) (*chainadapter.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	lock, ok := f.locks[lockID]
	if !ok || lock.State != chainadapter.StateOpen {
		return nil, chainadapter.ErrNotClaimable
	}
	lock.State = chainadapter.StateClaimed
	f.locks[lockID] = lock
	return &chainadapter.TxResult{Hash: common.BytesToHash(lockID[:])}, nil
}

func (f *fakeAdapter) Refund(ctx context.Context, lockID [32]byte) (*chainadapter.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	lock, ok := f.locks[lockID]
	if !ok || lock.State != chainadapter.StateOpen {
		return nil, chainadapter.ErrNotRefundable
	}
	lock.State = chainadapter.StateRefunded
	f.locks[lockID] = lock
	return &chainadapter.TxResult{Hash: common.BytesToHash(lockID[:])}, nil
}

func (f *fakeAdapter) GetLock(ctx context.Context, lockID [32]byte) (chainadapter.Lock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lock, ok := f.locks[lockID]
	if !ok {
		return chainadapter.Lock{State: chainadapter.StateInvalid}, nil
	}
	return lock, nil
}

func (f *fakeAdapter) CurrentChainTime(ctx context.Context) (uint64, error) {
	return f.chainTime, nil
}

// FindLockByParties linear-scans the seeded/minted locks for one between
// originator and beneficiary, standing in for a real adapter's event-log
// scan. It deliberately ignores hashLock, mirroring the real adapter: a
// lock funded under the wrong hash must still be found.
func (f *fakeAdapter) FindLockByParties(ctx context.Context, originator, beneficiary common.Address) ([32]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, lock := range f.locks {
		if lock.Originator == originator && lock.Beneficiary == beneficiary {
			return id, true, nil
		}
	}
	return [32]byte{}, false, nil
}

func (f *fakeAdapter) WaitForConfirmation(ctx context.Context, tx *chainadapter.TxResult, depth uint64) (*chainadapter.TxResult, error) {
	return tx, nil
}

// seedLock lets a test plant a lock directly, simulating one deployed by
// the user or by a different engine's prior tick.
func (f *fakeAdapter) seedLock(lockID [32]byte, lock chainadapter.Lock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks[lockID] = lock
}
