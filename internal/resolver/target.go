package resolver

import (
	"context"
	"fmt"

	"github.com/meridian-labs/resolverd/internal/chainadapter"
	"github.com/meridian-labs/resolverd/internal/inventory"
	"github.com/meridian-labs/resolverd/internal/store"
)

// processTargetSwap runs the six target-chain actions of §4.4 against a
// USER_HTLC_FUNDED swap whose targetChain is this engine's chain: the source
// engine has already validated the user's lock before this fires. Every
// write step re-reads authoritative state first so a retried tick never
// double-spends.
func (e *Engine) processTargetSwap(ctx context.Context, swap *store.Swap) error {
	if swap.Status != store.StatusUserHTLCFunded {
		return nil
	}

	expectedUnits, token, err := toSmallestUnits(e.registry, swap.TargetChain, swap.TargetToken, swap.ExpectedAmount)
	if err != nil {
		return err
	}

	// Step 1: checkLiquidity.
	balance, err := e.ledger.Observe(ctx, swap.TargetChain, swap.TargetToken)
	if err != nil {
		return fmt.Errorf("resolver: checkLiquidity: %w", err)
	}
	if balance.AvailableBalance < expectedUnits.Int64() {
		return fmt.Errorf("resolver: checkLiquidity: %w", inventory.ErrInsufficientLiquidity)
	}

	// Step 2: validatePricing.
	if e.priceSource != nil {
		sourceUnits, _, err := toSmallestUnits(e.registry, swap.SourceChain, swap.SourceToken, swap.SourceAmount)
		if err != nil {
			return err
		}
		if err := validatePricing(e.priceSource, swap.SourceChain, swap.SourceToken, bigToFloat(sourceUnits), swap.TargetChain, swap.TargetToken, bigToFloat(expectedUnits), swap.SlippageTolerance); err != nil {
			e.failSwap(ctx, swap, err)
			return err
		}
	}

	// Step 3: reserve.
	if err := e.ledger.Reserve(ctx, swap.TargetChain, swap.TargetToken, expectedUnits.Int64()); err != nil {
		return fmt.Errorf("resolver: reserve: %w", err)
	}

	adapter, err := e.adapterFor(swap.TargetChain)
	if err != nil {
		e.ledger.Release(ctx, swap.TargetChain, swap.TargetToken, expectedUnits.Int64())
		return err
	}
	operator, err := e.operatorAddressFor(swap.TargetChain)
	if err != nil {
		e.ledger.Release(ctx, swap.TargetChain, swap.TargetToken, expectedUnits.Int64())
		return err
	}

	// Step 4: deployPoolLock.
	opID := e.beginOperation(ctx, swap, store.OpDeployPool)
	beneficiary := parseAddress(swap.BeneficiaryAddress)

	poolLockID, err := adapter.NextLockID(operator, beneficiary, swap.HashLock, uint64(swap.ExpirationTime), token.Address, expectedUnits)
	if err != nil {
		e.ledger.Release(ctx, swap.TargetChain, swap.TargetToken, expectedUnits.Int64())
		e.recordFailure(ctx, opID, swap, store.OpDeployPool, err)
		return err
	}

	tx, err := adapter.Lock(ctx, poolLockID, token.Address, beneficiary, swap.HashLock, uint64(swap.ExpirationTime), expectedUnits)
	if err != nil {
		e.ledger.Release(ctx, swap.TargetChain, swap.TargetToken, expectedUnits.Int64())
		e.recordFailure(ctx, opID, swap, store.OpDeployPool, err)
		return err
	}
	e.completeOperation(ctx, opID, tx.Hash.Hex())

	// Step 5: confirm and re-read.
	if _, err := adapter.WaitForConfirmation(ctx, tx, e.confirmationsFor(swap.TargetChain)); err != nil {
		return fmt.Errorf("resolver: wait for pool lock confirmation: %w", err)
	}
	lock, err := adapter.GetLock(ctx, poolLockID)
	if err != nil {
		return fmt.Errorf("resolver: re-read pool lock: %w", err)
	}
	if lock.State != chainadapter.StateOpen || lock.Value.Cmp(expectedUnits) != 0 || lock.HashLock != swap.HashLock {
		e.ledger.Release(ctx, swap.TargetChain, swap.TargetToken, expectedUnits.Int64())
		e.failSwap(ctx, swap, fmt.Errorf("%w: pool lock mismatch", ErrAmountMismatch))
		return ErrAmountMismatch
	}

	// Step 6: transition.
	status := store.StatusPoolFulfilled
	lockIDCopy := poolLockID
	_, err = e.store.UpdateSwapAndAppendEvent(ctx, swap.ID, store.Patch{
		Status:     &status,
		PoolLockID: &lockIDCopy,
	}, store.SwapEvent{Type: store.EventPoolFulfilled})
	if err != nil {
		return fmt.Errorf("resolver: transition to POOL_FULFILLED: %w", err)
	}
	e.emit(swap.ID, store.EventPoolFulfilled)
	return nil
}

func (e *Engine) failSwap(ctx context.Context, swap *store.Swap, cause error) {
	status := store.StatusError
	if _, err := e.store.UpdateSwapAndAppendEvent(ctx, swap.ID, store.Patch{Status: &status}, store.SwapEvent{Type: store.EventError, Data: cause.Error()}); err != nil {
		e.log.Error("could not transition swap to ERROR", "swap", swap.ID, "err", err)
		return
	}
	e.emit(swap.ID, store.EventError)
}

