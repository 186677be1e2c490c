// Package resolver drives each swap from PENDING to a terminal state by
// performing only the actions that belong to one chain's role in the swap.
// There is one Engine per chain; two engines may work the same swap, each
// responsible for its own leg, coordinating only through the Swap Store.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meridian-labs/resolverd/internal/chainadapter"
	"github.com/meridian-labs/resolverd/internal/inventory"
	"github.com/meridian-labs/resolverd/internal/store"
	"github.com/meridian-labs/resolverd/internal/tokenregistry"
	"github.com/meridian-labs/resolverd/pkg/logging"
)

// AdapterLookup resolves the chain adapter for a given chain name. An
// engine needs this beyond its own chain because a source-chain engine
// must read the target chain's pool lock before revealing a preimage.
type AdapterLookup func(chainName string) (chainadapter.Adapter, bool)

// OperatorAddressLookup resolves the operator's signing address on a
// given chain, so the engine can populate lock/beneficiary fields and
// verify a user lock names the operator as beneficiary.
type OperatorAddressLookup func(chainName string) (common.Address, bool)

// EventSink receives a swap event the moment it is durably recorded, so a
// WebSocket hub can push it to subscribed clients without polling the
// store. Broadcast must not block; a full queue should drop the event.
type EventSink interface {
	Broadcast(swapID string, eventType store.EventType, data interface{})
}

// Config wires one Engine to its chain and its shared dependencies.
type Config struct {
	ChainName          string
	Store              *store.Store
	Ledger             *inventory.Ledger
	Registry           *tokenregistry.Registry
	Adapters           AdapterLookup
	OperatorAddress    OperatorAddressLookup
	PriceSource        PriceSource
	ProcessingInterval time.Duration
	MaxBatchSize       int
	MaxRetries         int
	Events             EventSink
	Logger             *logging.Logger
}

// Engine is the per-chain resolver loop.
type Engine struct {
	chainName       string
	store           *store.Store
	ledger          *inventory.Ledger
	registry        *tokenregistry.Registry
	adapters        AdapterLookup
	operatorAddress OperatorAddressLookup
	priceSource     PriceSource
	interval        time.Duration
	batchSize       int
	maxRetries      int
	events          EventSink
	log             *logging.Logger
}

// New builds an Engine from cfg, applying documented defaults for any
// zero-valued tuning parameters.
func New(cfg Config) *Engine {
	interval := cfg.ProcessingInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	batchSize := cfg.MaxBatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}

	return &Engine{
		chainName:       cfg.ChainName,
		store:           cfg.Store,
		ledger:          cfg.Ledger,
		registry:        cfg.Registry,
		adapters:        cfg.Adapters,
		operatorAddress: cfg.OperatorAddress,
		priceSource:     cfg.PriceSource,
		interval:        interval,
		batchSize:       batchSize,
		maxRetries:      maxRetries,
		events:          cfg.Events,
		log:             log.Component("resolver." + cfg.ChainName),
	}
}

// emit notifies the configured EventSink, if any, that eventType was just
// durably recorded for swapID. A nil sink (no API server wired in) is a
// silent no-op.
func (e *Engine) emit(swapID string, eventType store.EventType) {
	if e.events == nil {
		return
	}
	e.events.Broadcast(swapID, eventType, nil)
}

// Run ticks every ProcessingInterval until ctx is cancelled. A cancellation
// is observed between swaps, not mid-transaction: the in-flight swap in a
// batch finishes its current step before the loop exits.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("stopping, draining in-flight batch")
			return
		case <-ticker.C:
			if err := e.RunOnce(ctx); err != nil {
				e.log.Error("tick failed", "err", err)
			}
		}
	}
}

// RunOnce processes one batch of target-role and source-role swaps.
func (e *Engine) RunOnce(ctx context.Context) error {
	targetSwaps, err := e.store.GetPendingSwapsForRole(ctx, e.chainName, store.RoleTarget, e.batchSize)
	if err != nil {
		return fmt.Errorf("resolver: fetch target swaps: %w", err)
	}
	for _, swap := range targetSwaps {
		if ctx.Err() != nil {
			return nil
		}
		if e.expireIfDue(ctx, swap, store.RoleTarget) {
			continue
		}
		if swap.Status == store.StatusUserClaimed {
			if err := e.observePoolClaim(ctx, swap); err != nil {
				e.log.Warn("observe pool claim failed", "swap", swap.ID, "err", err)
			}
			continue
		}
		if err := e.processTargetSwap(ctx, swap); err != nil {
			e.log.Warn("target action failed", "swap", swap.ID, "err", err)
		}
	}

	sourceSwaps, err := e.store.GetPendingSwapsForRole(ctx, e.chainName, store.RoleSource, e.batchSize)
	if err != nil {
		return fmt.Errorf("resolver: fetch source swaps: %w", err)
	}
	for _, swap := range sourceSwaps {
		if ctx.Err() != nil {
			return nil
		}
		if e.expireIfDue(ctx, swap, store.RoleSource) {
			continue
		}
		if swap.Status == store.StatusPending {
			if err := e.detectUserLock(ctx, swap); err != nil {
				e.log.Warn("detect user lock failed", "swap", swap.ID, "err", err)
			}
			continue
		}
		if err := e.processSourceSwap(ctx, swap); err != nil {
			e.log.Warn("source action failed", "swap", swap.ID, "err", err)
		}
	}

	return nil
}

func (e *Engine) adapterFor(chainName string) (chainadapter.Adapter, error) {
	a, ok := e.adapters(chainName)
	if !ok {
		return nil, fmt.Errorf("resolver: no adapter configured for chain %q", chainName)
	}
	return a, nil
}

func (e *Engine) operatorAddressFor(chainName string) (common.Address, error) {
	addr, ok := e.operatorAddress(chainName)
	if !ok {
		return common.Address{}, fmt.Errorf("resolver: no operator address configured for chain %q", chainName)
	}
	return addr, nil
}

// confirmationsFor returns the confirmation depth a transaction on chainName
// must reach before the engine trusts it, falling back to a conservative
// default for a chain the registry has no override for.
func (e *Engine) confirmationsFor(chainName string) uint64 {
	const defaultConfirmations = 1
	params, ok := e.registry.Chain(chainName)
	if !ok || params.Confirmations == 0 {
		return defaultConfirmations
	}
	return params.Confirmations
}

func (e *Engine) recordFailure(ctx context.Context, opID string, swap *store.Swap, opType store.OperationType, err error) {
	e.log.Error("step failed", "swap", swap.ID, "step", opType, "err", err)
	if opID != "" {
		_ = e.store.FinalizeOperation(ctx, opID, store.OperationFailed, err.Error(), "")
	}
	if n := e.consecutiveFailures(ctx, swap.ID, opType); n >= e.maxRetries {
		e.log.Error("retry budget exhausted, failing swap", "swap", swap.ID, "step", opType, "attempts", n)
		e.failSwap(ctx, swap, fmt.Errorf("%w: %s failed %d times", ErrMaxRetriesReached, opType, n))
	}
}

// consecutiveFailures counts how many of the most recent operations of
// opType recorded against swapID failed in a row, stopping at the first
// completed or in-progress one. That boundary is what makes it a streak
// rather than a lifetime total: a step that eventually succeeds resets the
// budget for the next time it is attempted.
func (e *Engine) consecutiveFailures(ctx context.Context, swapID string, opType store.OperationType) int {
	ops, err := e.store.ListOperationsForSwap(ctx, swapID, 50)
	if err != nil {
		e.log.Warn("could not list operations for retry accounting", "swap", swapID, "err", err)
		return 0
	}
	count := 0
	for _, op := range ops {
		if op.Type != opType {
			continue
		}
		if op.Status != store.OperationFailed {
			break
		}
		count++
	}
	return count
}

func (e *Engine) beginOperation(ctx context.Context, swap *store.Swap, opType store.OperationType) string {
	op, err := e.store.AppendOperation(ctx, store.ResolverOperation{SwapID: swap.ID, Type: opType})
	if err != nil {
		e.log.Warn("could not record operation start", "swap", swap.ID, "err", err)
		return ""
	}
	return op.ID
}

func (e *Engine) completeOperation(ctx context.Context, opID, txHash string) {
	if opID == "" {
		return
	}
	if err := e.store.FinalizeOperation(ctx, opID, store.OperationCompleted, "", txHash); err != nil {
		e.log.Warn("could not finalize operation", "op", opID, "err", err)
	}
}
