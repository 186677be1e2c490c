// Package store is the authoritative, durable record of swaps, their
// events, and the resolver operations performed against them.
package store

import (
	"errors"
	"time"
)

// Status is a swap's position in the state machine of §4.5. Transitions
// are monotonic: the store enforces the directed graph, never lets a swap
// move backward into an earlier non-terminal state.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusUserHTLCFunded   Status = "USER_HTLC_FUNDED"
	StatusPoolFulfilled    Status = "POOL_FULFILLED"
	StatusUserClaimed      Status = "USER_CLAIMED"
	StatusPoolClaimed      Status = "POOL_CLAIMED"
	StatusExpired          Status = "EXPIRED"
	StatusRefunded         Status = "REFUNDED"
	StatusCancelled        Status = "CANCELLED"
	StatusError            Status = "ERROR"
)

// terminal reports whether a status has no outgoing transitions.
func (s Status) terminal() bool {
	switch s {
	case StatusPoolClaimed, StatusRefunded, StatusCancelled, StatusError:
		return true
	default:
		return false
	}
}

// allowedNext enumerates the directed edges of the state machine in §4.5.
// EXPIRED, ERROR and REFUNDED are reachable from every non-terminal state,
// so they are appended by canTransition rather than listed per source state.
var allowedNext = map[Status][]Status{
	StatusPending:        {StatusUserHTLCFunded, StatusCancelled},
	StatusUserHTLCFunded: {StatusPoolFulfilled},
	StatusPoolFulfilled:  {StatusUserClaimed},
	StatusUserClaimed:    {StatusPoolClaimed},
}

// canTransition reports whether moving from `from` to `to` is a legal edge.
func canTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from.terminal() {
		return false
	}
	if to == StatusExpired || to == StatusError || to == StatusRefunded {
		return true
	}
	for _, candidate := range allowedNext[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// EventType names the kind of SwapEvent appended alongside a status change.
type EventType string

const (
	EventInitiated       EventType = "INITIATED"
	EventUserHTLCFunded  EventType = "USER_HTLC_FUNDED"
	EventPoolFulfilled   EventType = "POOL_FULFILLED"
	EventUserClaimed     EventType = "USER_CLAIMED"
	EventPoolClaimed     EventType = "POOL_CLAIMED"
	EventExpired         EventType = "EXPIRED"
	EventRefunded        EventType = "REFUNDED"
	EventCancelled       EventType = "CANCELLED"
	EventError           EventType = "ERROR"
)

// OperationType names one step of a resolver engine's per-swap work,
// tracked for diagnostics and for exactly-once reasoning on retry.
type OperationType string

const (
	OpDetect       OperationType = "DETECT"
	OpValidateUser OperationType = "VALIDATE_USER"
	OpMatch        OperationType = "MATCH"
	OpDeployPool   OperationType = "DEPLOY_POOL"
	OpClaimUser    OperationType = "CLAIM_USER"
	OpFinalize     OperationType = "FINALIZE"
	OpError        OperationType = "ERROR"
)

// OperationStatus is the lifecycle of a single ResolverOperation attempt.
type OperationStatus string

const (
	OperationInProgress OperationStatus = "IN_PROGRESS"
	OperationCompleted  OperationStatus = "COMPLETED"
	OperationFailed     OperationStatus = "FAILED"
)

// Role distinguishes which leg of a swap an engine is driving.
type Role string

const (
	RoleSource Role = "source"
	RoleTarget Role = "target"
)

// Swap is the durable record of one cross-chain atomic swap attempt.
type Swap struct {
	ID     string
	Status Status

	UserAddress        string
	BeneficiaryAddress string

	SourceChain  string
	SourceToken  string
	SourceAmount string // decimal string, smallest-unit agnostic per token.Decimals

	TargetChain      string
	TargetToken      string
	ExpectedAmount   string
	SlippageTolerance float64

	// Preimage is stored server-side only and is never returned by the
	// public API surface; it becomes public when the source-chain claim
	// reveals it on chain.
	Preimage [32]byte
	HashLock [32]byte

	UserLockID *[32]byte
	PoolLockID *[32]byte

	ExpirationTime int64 // unix seconds

	CreatedAt     time.Time
	UpdatedAt     time.Time
	MatchedAt     *time.Time
	PoolClaimedAt *time.Time
}

// SwapEvent is one append-only log entry produced alongside a swap update.
type SwapEvent struct {
	ID        string
	SwapID    string
	Type      EventType
	Data      string // free-form JSON payload
	Timestamp time.Time
}

// ResolverOperation is one attempt record for a single engine step.
type ResolverOperation struct {
	ID           string
	SwapID       string
	Type         OperationType
	Status       OperationStatus
	StartedAt    time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	TxHash       string
}

// Draft is the caller-supplied input to createSwap; the caller generates
// the preimage and supplies HashLock alongside it. CreateSwap checks that
// HashLock is SHA-256 of the preimage and stores the preimage as-is in the
// swap's row.
type Draft struct {
	UserAddress        string
	BeneficiaryAddress string
	SourceChain        string
	SourceToken        string
	SourceAmount       string
	TargetChain        string
	TargetToken        string
	ExpectedAmount     string
	SlippageTolerance  float64
	Preimage           [32]byte
	HashLock           [32]byte
	ExpirationTime     int64
}

// Patch describes a partial update to a swap row. Nil fields are left
// unchanged.
type Patch struct {
	Status         *Status
	UserLockID     *[32]byte
	PoolLockID     *[32]byte
	MatchedAt      *time.Time
	PoolClaimedAt  *time.Time
	ExpirationTime *int64
}

// Filter narrows listSwaps results. Zero-value fields are unconstrained.
type Filter struct {
	Status      Status
	SourceChain string
	TargetChain string
	UserAddress string
}

var (
	ErrSwapNotFound        = errors.New("store: swap not found")
	ErrInvalidTransition   = errors.New("store: invalid status transition")
	ErrInvalidDraft        = errors.New("store: invalid swap draft")
	ErrOperationNotFound   = errors.New("store: resolver operation not found")
)
