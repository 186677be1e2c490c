// Package chainadapter provides a uniform interface over the on-chain HTLC
// primitive, regardless of which ABI dialect a given deployment exposes.
package chainadapter

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LockState mirrors the on-chain lock lifecycle.
type LockState uint8

const (
	StateInvalid LockState = iota
	StateOpen
	StateClaimed
	StateRefunded
)

func (s LockState) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClaimed:
		return "CLAIMED"
	case StateRefunded:
		return "REFUNDED"
	default:
		return "INVALID"
	}
}

// Lock is the read-only view of an on-chain HTLC entry.
type Lock struct {
	Token       common.Address
	Beneficiary common.Address
	Originator  common.Address
	HashLock    [32]byte
	Timelock    uint64
	Value       *big.Int
	State       LockState
}

// IsZero reports whether this is the all-zero INVALID record returned for
// an id the contract has never seen.
func (l Lock) IsZero() bool {
	return l.State == StateInvalid
}

// TxResult describes a submitted transaction the caller can wait on.
type TxResult struct {
	Hash        common.Hash
	BlockNumber uint64 // zero until mined
}

// Sentinel errors. Callers classify failures with errors.Is against these;
// wrap with fmt.Errorf("...: %w", ...) when adding context.
var (
	ErrInsufficientBalance = errors.New("chainadapter: insufficient balance")
	ErrAllowanceFailed     = errors.New("chainadapter: allowance approval failed")
	ErrDuplicateLockID     = errors.New("chainadapter: duplicate lock id")
	ErrInvalidParams       = errors.New("chainadapter: invalid parameters")
	ErrNetwork             = errors.New("chainadapter: network error")
	ErrReverted            = errors.New("chainadapter: transaction reverted")
	ErrNotClaimable        = errors.New("chainadapter: lock is not claimable")
	ErrWrongPreimage       = errors.New("chainadapter: preimage does not match hash lock")
	ErrNotRefundable       = errors.New("chainadapter: lock is not refundable")
	ErrUnknownDialect      = errors.New("chainadapter: could not detect contract dialect")
)

// NativeToken is the sentinel address meaning "the chain's native asset"
// rather than an ERC-20 token.
var NativeToken = common.Address{}

// Adapter is the capability surface the resolver engine drives per chain.
// Every write method MUST be idempotent with respect to lockId: calling
// Lock twice with the same id either returns the same transaction outcome
// or fails with ErrDuplicateLockID, never double-spends.
type Adapter interface {
	// Lock escrows value of token under lockId, releasable to beneficiary
	// with the matching preimage or refundable to the caller after timelock.
	Lock(ctx context.Context, lockID [32]byte, token common.Address, beneficiary common.Address, hashLock [32]byte, timelock uint64, value *big.Int) (*TxResult, error)

	// Claim releases an OPEN lock to its beneficiary given the preimage.
	Claim(ctx context.Context, lockID [32]byte, preimage [32]byte) (*TxResult, error)

	// Refund returns an expired, still-OPEN lock's funds to its originator.
	Refund(ctx context.Context, lockID [32]byte) (*TxResult, error)

	// GetLock reads a lock's current on-chain state.
	GetLock(ctx context.Context, lockID [32]byte) (Lock, error)

	// CurrentChainTime returns the chain's own notion of time, taken from
	// the latest block header, never the local system clock.
	CurrentChainTime(ctx context.Context) (uint64, error)

	// WaitForConfirmation blocks until tx has at least depth confirmations.
	WaitForConfirmation(ctx context.Context, tx *TxResult, depth uint64) (*TxResult, error)

	// NextLockID mints a fresh, process-lifetime-unique lock id for the
	// given lock parameters.
	NextLockID(originator, beneficiary common.Address, hashLock [32]byte, timelock uint64, token common.Address, value *big.Int) ([32]byte, error)

	// FindLockByParties scans recent chain history for a lock between
	// originator and beneficiary that this adapter did not itself mint
	// (typically a user's independently-submitted HTLC funding
	// transaction). It deliberately does not filter on hashLock: a lock
	// funded with the wrong hashLock must still be found so the caller can
	// detect and reject the mismatch, rather than waiting forever for a
	// lock that will never appear under the expected hash. ok is false if
	// no such lock has appeared yet; that is not an error.
	FindLockByParties(ctx context.Context, originator, beneficiary common.Address) (lockID [32]byte, ok bool, err error)

	// ChainName returns the logical chain name this adapter serves.
	ChainName() string
}
