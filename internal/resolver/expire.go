package resolver

import (
	"context"
	"time"

	"github.com/meridian-labs/resolverd/internal/chainadapter"
	"github.com/meridian-labs/resolverd/internal/store"
)

// expireIfDue checks whether swap has passed its expirationTime. The first
// tick after expiry it transitions the swap to EXPIRED; every tick after
// that while still EXPIRED it retries refunding whichever leg this engine
// owns, until the refund confirms and the swap reaches REFUNDED. Returns
// true if it handled this swap, meaning the caller should skip the normal
// role action for it this tick.
func (e *Engine) expireIfDue(ctx context.Context, swap *store.Swap, role store.Role) bool {
	expired := time.Now().UTC().Unix() >= swap.ExpirationTime

	if swap.Status != store.StatusExpired {
		if !expired {
			return false
		}
		status := store.StatusExpired
		if _, err := e.store.UpdateSwapAndAppendEvent(ctx, swap.ID, store.Patch{Status: &status}, store.SwapEvent{Type: store.EventExpired}); err != nil {
			e.log.Error("could not transition swap to EXPIRED", "swap", swap.ID, "err", err)
		} else {
			e.emit(swap.ID, store.EventExpired)
		}
		return true
	}

	adapter, err := e.adapterFor(e.chainName)
	if err != nil {
		e.log.Error("expiry refund: no adapter", "swap", swap.ID, "err", err)
		return true
	}

	var lockID *[32]byte
	if role == store.RoleTarget {
		lockID = swap.PoolLockID
	} else {
		lockID = swap.UserLockID
	}
	if lockID != nil {
		e.refundIfOpen(ctx, adapter, swap, *lockID, role)
	}
	return true
}

func (e *Engine) refundIfOpen(ctx context.Context, adapter chainadapter.Adapter, swap *store.Swap, lockID [32]byte, role store.Role) {
	lock, err := adapter.GetLock(ctx, lockID)
	if err != nil {
		e.log.Warn("could not read lock for refund check", "swap", swap.ID, "err", err)
		return
	}
	if lock.State != chainadapter.StateOpen {
		return
	}

	opID := e.beginOperation(ctx, swap, store.OpFinalize)
	tx, err := adapter.Refund(ctx, lockID)
	if err != nil {
		e.recordFailure(ctx, opID, swap, store.OpFinalize, err)
		return
	}
	e.completeOperation(ctx, opID, tx.Hash.Hex())
	if _, err := adapter.WaitForConfirmation(ctx, tx, e.confirmationsFor(e.chainName)); err != nil {
		e.log.Warn("could not confirm refund", "swap", swap.ID, "err", err)
		return
	}

	refunded := store.StatusRefunded
	if _, err := e.store.UpdateSwapAndAppendEvent(ctx, swap.ID, store.Patch{Status: &refunded}, store.SwapEvent{Type: store.EventRefunded}); err != nil {
		e.log.Error("could not transition swap to REFUNDED", "swap", swap.ID, "err", err)
		return
	}

	// Only a target-role refund returns tokens this engine had reserved
	// from the pool in processTargetSwap's step 3; a source-role refund
	// hands the user back their own funds and never touched the ledger.
	if role == store.RoleTarget {
		expectedUnits, _, err := toSmallestUnits(e.registry, swap.TargetChain, swap.TargetToken, swap.ExpectedAmount)
		if err != nil {
			e.log.Error("could not compute reservation to release", "swap", swap.ID, "err", err)
		} else if err := e.ledger.Release(ctx, swap.TargetChain, swap.TargetToken, expectedUnits.Int64()); err != nil {
			e.log.Error("could not release pool reservation", "swap", swap.ID, "err", err)
		}
	}

	e.emit(swap.ID, store.EventRefunded)
}
