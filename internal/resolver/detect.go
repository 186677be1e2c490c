package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-labs/resolverd/internal/chainadapter"
	"github.com/meridian-labs/resolverd/internal/store"
)

// detectUserLock is the source-chain engine's first action on a PENDING
// swap. The user funds their source-chain lock independently, off this
// system, using the hashLock createSwap handed back; until that lock shows
// up on chain there is nothing to do, and that absence is not an error.
func (e *Engine) detectUserLock(ctx context.Context, swap *store.Swap) error {
	if swap.Status != store.StatusPending {
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

	lockID, found, err := adapter.FindLockByParties(ctx, parseAddress(swap.UserAddress), operator)
	if err != nil {
		return fmt.Errorf("resolver: detectUserLock: %w", err)
	}
	if !found {
		return nil
	}

	opID := e.beginOperation(ctx, swap, store.OpDetect)

	lock, err := adapter.GetLock(ctx, lockID)
	if err != nil {
		e.recordFailure(ctx, opID, swap, store.OpDetect, err)
		return err
	}
	if lock.State != chainadapter.StateOpen {
		e.recordFailure(ctx, opID, swap, store.OpDetect, ErrLockNotOpen)
		return ErrLockNotOpen
	}
	if lock.Beneficiary != operator {
		e.recordFailure(ctx, opID, swap, store.OpDetect, ErrBeneficiaryWrong)
		e.failSwap(ctx, swap, ErrBeneficiaryWrong)
		return ErrBeneficiaryWrong
	}
	if lock.HashLock != swap.HashLock {
		e.recordFailure(ctx, opID, swap, store.OpDetect, ErrHashMismatch)
		e.failSwap(ctx, swap, ErrHashMismatch)
		return ErrHashMismatch
	}
	sourceUnits, _, err := toSmallestUnits(e.registry, swap.SourceChain, swap.SourceToken, swap.SourceAmount)
	if err != nil {
		e.recordFailure(ctx, opID, swap, store.OpDetect, err)
		return err
	}
	if !withinTolerance(lock.Value, sourceUnits, amountTolerance) {
		e.recordFailure(ctx, opID, swap, store.OpDetect, ErrAmountMismatch)
		e.failSwap(ctx, swap, ErrAmountMismatch)
		return ErrAmountMismatch
	}

	status := store.StatusUserHTLCFunded
	now := time.Now().UTC()
	lockCopy := lockID
	_, err = e.store.UpdateSwapAndAppendEvent(ctx, swap.ID, store.Patch{
		Status:     &status,
		UserLockID: &lockCopy,
		MatchedAt:  &now,
	}, store.SwapEvent{Type: store.EventUserHTLCFunded})
	if err != nil {
		e.recordFailure(ctx, opID, swap, store.OpDetect, err)
		return fmt.Errorf("resolver: transition to USER_HTLC_FUNDED: %w", err)
	}
	e.completeOperation(ctx, opID, "")
	e.emit(swap.ID, store.EventUserHTLCFunded)
	return nil
}
