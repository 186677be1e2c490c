package resolver

import (
	"context"
	"fmt"

	"github.com/meridian-labs/resolverd/internal/chainadapter"
	"github.com/meridian-labs/resolverd/internal/store"
)

// observePoolClaim is the target-chain engine's final action. The user
// claims the pool lock with their own wallet once they have seen the
// preimage revealed on the source chain; this engine never submits that
// claim itself, it only polls the lock until the chain shows it CLAIMED and
// then marks the swap settled.
func (e *Engine) observePoolClaim(ctx context.Context, swap *store.Swap) error {
	if swap.Status != store.StatusUserClaimed {
		return nil
	}
	if swap.PoolLockID == nil {
		return nil
	}

	adapter, err := e.adapterFor(swap.TargetChain)
	if err != nil {
		return err
	}

	lock, err := adapter.GetLock(ctx, *swap.PoolLockID)
	if err != nil {
		return fmt.Errorf("resolver: observePoolClaim: %w", err)
	}
	if lock.State != chainadapter.StateClaimed {
		return nil // the user has not claimed yet; retry next tick
	}

	status := store.StatusPoolClaimed
	_, err = e.store.UpdateSwapAndAppendEvent(ctx, swap.ID, store.Patch{
		Status: &status,
	}, store.SwapEvent{Type: store.EventPoolClaimed})
	if err != nil {
		return fmt.Errorf("resolver: transition to POOL_CLAIMED: %w", err)
	}

	// The reservation taken in processTargetSwap's step 3 exists only to
	// prevent overcommitting pool inventory to swaps still in flight; once
	// the user has claimed, those tokens are spent, not reserved.
	expectedUnits, _, err := toSmallestUnits(e.registry, swap.TargetChain, swap.TargetToken, swap.ExpectedAmount)
	if err != nil {
		e.log.Error("could not compute reservation to release", "swap", swap.ID, "err", err)
	} else if err := e.ledger.Release(ctx, swap.TargetChain, swap.TargetToken, expectedUnits.Int64()); err != nil {
		e.log.Error("could not release pool reservation", "swap", swap.ID, "err", err)
	}

	e.emit(swap.ID, store.EventPoolClaimed)
	return nil
}
