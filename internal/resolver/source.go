package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-labs/resolverd/internal/chainadapter"
	"github.com/meridian-labs/resolverd/internal/store"
)

// processSourceSwap runs the four source-chain actions of §4.4: claiming the
// user's lock and revealing the preimage. It only applies once the target
// engine has deployed and confirmed the pool lock (POOL_FULFILLED); detection
// of the user's lock itself happens earlier, in detectUserLock.
func (e *Engine) processSourceSwap(ctx context.Context, swap *store.Swap) error {
	if swap.Status != store.StatusPoolFulfilled {
		return nil
	}
	if swap.UserLockID == nil {
		return nil
	}

	adapter, err := e.adapterFor(swap.SourceChain)
	if err != nil {
		return err
	}
	operator, err := e.operatorAddressFor(swap.SourceChain)
	if err != nil {
		return err
	}

	// Step 1: validateUserLock.
	userLock, err := adapter.GetLock(ctx, *swap.UserLockID)
	if err != nil {
		return fmt.Errorf("resolver: validateUserLock: %w", err)
	}
	if userLock.State != chainadapter.StateOpen {
		return fmt.Errorf("%w: user lock %x", ErrLockNotOpen, *swap.UserLockID)
	}
	if userLock.HashLock != swap.HashLock {
		e.failSwap(ctx, swap, ErrHashMismatch)
		return ErrHashMismatch
	}
	if userLock.Beneficiary != operator {
		e.failSwap(ctx, swap, ErrBeneficiaryWrong)
		return ErrBeneficiaryWrong
	}
	sourceUnits, _, err := toSmallestUnits(e.registry, swap.SourceChain, swap.SourceToken, swap.SourceAmount)
	if err != nil {
		return err
	}
	if !withinTolerance(userLock.Value, sourceUnits, amountTolerance) {
		e.failSwap(ctx, swap, ErrAmountMismatch)
		return ErrAmountMismatch
	}

	// Step 2: cross-chain safety check. sourceChain and targetChain are
	// always distinct chains (enforced at creation), so the pool lock this
	// claim depends on was deployed by a different engine; re-fetch the row
	// to pick up whatever it has written and independently re-read that
	// lock's on-chain state before revealing the preimage.
	fresh, err := e.store.GetSwap(ctx, swap.ID)
	if err != nil {
		return fmt.Errorf("resolver: re-fetch swap: %w", err)
	}
	if fresh.PoolLockID == nil {
		return nil // not an error: retry next tick once the target engine has deployed its lock
	}
	targetAdapter, err := e.adapterFor(swap.TargetChain)
	if err != nil {
		return err
	}
	poolLock, err := targetAdapter.GetLock(ctx, *fresh.PoolLockID)
	if err != nil {
		return fmt.Errorf("resolver: re-read pool lock: %w", err)
	}
	if poolLock.State != chainadapter.StateOpen || poolLock.HashLock != swap.HashLock {
		return nil // pool lock not yet confirmed in a claimable shape; retry next tick
	}
	expectedUnits, _, err := toSmallestUnits(e.registry, swap.TargetChain, swap.TargetToken, swap.ExpectedAmount)
	if err != nil {
		return err
	}
	if !withinTolerance(poolLock.Value, expectedUnits, amountTolerance) {
		e.failSwap(ctx, swap, fmt.Errorf("%w: pool lock value", ErrAmountMismatch))
		return ErrAmountMismatch
	}
	swap = fresh

	// Step 3: claimUserLock. Submitting this reveals the preimage publicly
	// on the source chain; that is intentional, it lets the user claim the
	// pool lock on the target chain symmetrically.
	opID := e.beginOperation(ctx, swap, store.OpClaimUser)
	tx, err := adapter.Claim(ctx, *swap.UserLockID, swap.Preimage)
	if err != nil {
		e.recordFailure(ctx, opID, swap, store.OpClaimUser, err)
		return err
	}
	e.completeOperation(ctx, opID, tx.Hash.Hex())
	if _, err := adapter.WaitForConfirmation(ctx, tx, e.confirmationsFor(swap.SourceChain)); err != nil {
		return fmt.Errorf("resolver: wait for claim confirmation: %w", err)
	}

	// Step 4: transition.
	status := store.StatusUserClaimed
	now := time.Now().UTC()
	_, err = e.store.UpdateSwapAndAppendEvent(ctx, swap.ID, store.Patch{
		Status:        &status,
		PoolClaimedAt: &now,
	}, store.SwapEvent{Type: store.EventUserClaimed})
	if err != nil {
		return fmt.Errorf("resolver: transition to USER_CLAIMED: %w", err)
	}
	e.emit(swap.ID, store.EventUserClaimed)
	return nil
}
