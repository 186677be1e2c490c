package resolver

import (
	"context"
	"crypto/sha256"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/resolverd/internal/chainadapter"
	"github.com/meridian-labs/resolverd/internal/inventory"
	"github.com/meridian-labs/resolverd/internal/store"
	"github.com/meridian-labs/resolverd/internal/tokenregistry"
)

const (
	sourceChain = "source-chain"
	targetChain = "target-chain"
)

var (
	operatorAddr    = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	userAddr        = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

type testHarness struct {
	store    *store.Store
	ledger   *inventory.Ledger
	registry *tokenregistry.Registry
	sourceAd *fakeAdapter
	targetAd *fakeAdapter
	engine   *Engine
}

func newTestHarness(t *testing.T, price PriceSource) *testHarness {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "resolver.db")

	s, err := store.Open(dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ledger, err := inventory.Open(dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	registry, err := tokenregistry.NewBuilder().
		AddChain(tokenregistry.ChainParams{Name: sourceChain, ChainID: 1, NativeSymbol: "ETH", Confirmations: 1}).
		AddChain(tokenregistry.ChainParams{Name: targetChain, ChainID: 2, NativeSymbol: "ETH", Confirmations: 1}).
		AddToken(tokenregistry.Token{Chain: sourceChain, Symbol: "ETH", Decimals: 18}).
		AddToken(tokenregistry.Token{Chain: targetChain, Symbol: "ETH", Decimals: 18}).
		AllowPair(sourceChain, targetChain).
		Build()
	require.NoError(t, err)

	sourceAd := newFakeAdapter(sourceChain)
	targetAd := newFakeAdapter(targetChain)
	adapters := map[string]chainadapter.Adapter{
		sourceChain: sourceAd,
		targetChain: targetAd,
	}
	operators := map[string]common.Address{
		sourceChain: operatorAddr,
		targetChain: operatorAddr,
	}

	engine := New(Config{
		ChainName: targetChain,
		Store:     s,
		Ledger:    ledger,
		Registry:  registry,
		Adapters: func(chain string) (chainadapter.Adapter, bool) {
			a, ok := adapters[chain]
			return a, ok
		},
		OperatorAddress: func(chain string) (common.Address, bool) {
			a, ok := operators[chain]
			return a, ok
		},
		PriceSource: price,
	})

	return &testHarness{store: s, ledger: ledger, registry: registry, sourceAd: sourceAd, targetAd: targetAd, engine: engine}
}

func makeSwap(t *testing.T, h *testHarness, amount string) *store.Swap {
	t.Helper()
	preimage := [32]byte{9, 9, 9}
	draft := store.Draft{
		UserAddress:        userAddr.Hex(),
		BeneficiaryAddress: userAddr.Hex(),
		SourceChain:        sourceChain,
		SourceToken:        "ETH",
		SourceAmount:       amount,
		TargetChain:        targetChain,
		TargetToken:        "ETH",
		ExpectedAmount:     amount,
		SlippageTolerance:  0.01,
		Preimage:           preimage,
		HashLock:           sha256.Sum256(preimage[:]),
		ExpirationTime:     time.Now().Add(time.Hour).Unix(),
	}
	swap, err := h.store.CreateSwap(context.Background(), draft)
	require.NoError(t, err)
	return swap
}

// markUserHTLCFunded transitions a freshly created swap past detection, as
// if the source engine had already validated the user's lock.
func markUserHTLCFunded(t *testing.T, h *testHarness, swap *store.Swap) *store.Swap {
	t.Helper()
	status := store.StatusUserHTLCFunded
	userLockID := [32]byte{0xAB}
	_, err := h.store.UpdateSwap(context.Background(), swap.ID, store.Patch{Status: &status, UserLockID: &userLockID})
	require.NoError(t, err)
	updated, err := h.store.GetSwap(context.Background(), swap.ID)
	require.NoError(t, err)
	return updated
}

func TestDetectUserLock_HappyPath(t *testing.T) {
	h := newTestHarness(t, nil)
	h.engine = New(Config{
		ChainName: sourceChain,
		Store:     h.store,
		Ledger:    h.ledger,
		Registry:  h.registry,
		Adapters: func(chain string) (chainadapter.Adapter, bool) {
			if chain == sourceChain {
				return h.sourceAd, true
			}
			return h.targetAd, true
		},
		OperatorAddress: func(chain string) (common.Address, bool) { return operatorAddr, true },
	})
	ctx := context.Background()

	swap := makeSwap(t, h, "1.0")
	sourceUnits, _, err := toSmallestUnits(h.registry, sourceChain, "ETH", "1.0")
	require.NoError(t, err)

	userLockID := [32]byte{5}
	h.sourceAd.seedLock(userLockID, chainadapter.Lock{
		Beneficiary: operatorAddr,
		Originator:  userAddr,
		HashLock:    swap.HashLock,
		Value:       sourceUnits,
		State:       chainadapter.StateOpen,
	})

	err = h.engine.detectUserLock(ctx, swap)
	require.NoError(t, err)

	updated, err := h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusUserHTLCFunded, updated.Status)
	require.NotNil(t, updated.UserLockID)
	assert.Equal(t, userLockID, *updated.UserLockID)
}

func TestDetectUserLock_NotYetFunded(t *testing.T) {
	h := newTestHarness(t, nil)
	h.engine = New(Config{
		ChainName: sourceChain,
		Store:     h.store,
		Ledger:    h.ledger,
		Registry:  h.registry,
		Adapters: func(chain string) (chainadapter.Adapter, bool) {
			if chain == sourceChain {
				return h.sourceAd, true
			}
			return h.targetAd, true
		},
		OperatorAddress: func(chain string) (common.Address, bool) { return operatorAddr, true },
	})
	ctx := context.Background()

	swap := makeSwap(t, h, "1.0")
	err := h.engine.detectUserLock(ctx, swap)
	require.NoError(t, err)

	updated, err := h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, updated.Status, "must not advance until a lock from the user to the operator appears")
}

func TestDetectUserLock_HashMismatchFailsSwap(t *testing.T) {
	h := newTestHarness(t, nil)
	h.engine = New(Config{
		ChainName: sourceChain,
		Store:     h.store,
		Ledger:    h.ledger,
		Registry:  h.registry,
		Adapters: func(chain string) (chainadapter.Adapter, bool) {
			if chain == sourceChain {
				return h.sourceAd, true
			}
			return h.targetAd, true
		},
		OperatorAddress: func(chain string) (common.Address, bool) { return operatorAddr, true },
	})
	ctx := context.Background()

	swap := makeSwap(t, h, "1.0")
	sourceUnits, _, err := toSmallestUnits(h.registry, sourceChain, "ETH", "1.0")
	require.NoError(t, err)

	// The user funds the lock under originator/beneficiary the detector is
	// watching for, but tags it with a hashLock that does not match the
	// swap's. Detection must still find it, not wait for it forever.
	userLockID := [32]byte{6}
	wrongHash := [32]byte{0xFE}
	h.sourceAd.seedLock(userLockID, chainadapter.Lock{
		Beneficiary: operatorAddr,
		Originator:  userAddr,
		HashLock:    wrongHash,
		Value:       sourceUnits,
		State:       chainadapter.StateOpen,
	})

	err = h.engine.detectUserLock(ctx, swap)
	assert.ErrorIs(t, err, ErrHashMismatch)

	updated, err := h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusError, updated.Status)
}

func TestProcessTargetSwap_HappyPath(t *testing.T) {
	h := newTestHarness(t, NewFixedRatioSource(map[string]map[string]float64{"ETH": {"ETH": 1.0}}))
	ctx := context.Background()
	require.NoError(t, h.ledger.Seed(ctx, targetChain, "ETH", 5_000_000_000_000_000_000, 0))

	swap := markUserHTLCFunded(t, h, makeSwap(t, h, "1.0"))
	err := h.engine.processTargetSwap(ctx, swap)
	require.NoError(t, err)

	updated, err := h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPoolFulfilled, updated.Status)
	require.NotNil(t, updated.PoolLockID)

	lock, err := h.targetAd.GetLock(ctx, *updated.PoolLockID)
	require.NoError(t, err)
	assert.Equal(t, chainadapter.StateOpen, lock.State)

	balance, err := h.ledger.Observe(ctx, targetChain, "ETH")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000_000_000_000), balance.Reserved)
}

func TestProcessTargetSwap_InsufficientLiquidity(t *testing.T) {
	h := newTestHarness(t, NewFixedRatioSource(map[string]map[string]float64{"ETH": {"ETH": 1.0}}))
	ctx := context.Background()
	require.NoError(t, h.ledger.Seed(ctx, targetChain, "ETH", 0, 0))

	swap := markUserHTLCFunded(t, h, makeSwap(t, h, "1.0"))
	err := h.engine.processTargetSwap(ctx, swap)
	assert.ErrorIs(t, err, inventory.ErrInsufficientLiquidity)

	updated, err := h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusUserHTLCFunded, updated.Status)
}

func TestProcessTargetSwap_PriceOutsideBand(t *testing.T) {
	h := newTestHarness(t, NewFixedRatioSource(map[string]map[string]float64{"ETH": {"ETH": 2.0}}))
	ctx := context.Background()
	require.NoError(t, h.ledger.Seed(ctx, targetChain, "ETH", 5_000_000_000_000_000_000, 0))

	swap := markUserHTLCFunded(t, h, makeSwap(t, h, "1.0"))
	err := h.engine.processTargetSwap(ctx, swap)
	assert.ErrorIs(t, err, ErrPriceUnreasonable)

	updated, err := h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusError, updated.Status)

	balance, err := h.ledger.Observe(ctx, targetChain, "ETH")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Reserved, "a rejected swap must never hold a reservation")
}

func TestProcessSourceSwap_HappyPath(t *testing.T) {
	h := newTestHarness(t, nil)
	h.engine = New(Config{
		ChainName:       sourceChain,
		Store:           h.store,
		Ledger:          h.ledger,
		Registry:        h.registry,
		Adapters: func(chain string) (chainadapter.Adapter, bool) {
			if chain == sourceChain {
				return h.sourceAd, true
			}
			if chain == targetChain {
				return h.targetAd, true
			}
			return nil, false
		},
		OperatorAddress: func(chain string) (common.Address, bool) { return operatorAddr, true },
	})
	ctx := context.Background()

	swap := makeSwap(t, h, "1.0")
	sourceUnits, _, err := toSmallestUnits(h.registry, sourceChain, "ETH", "1.0")
	require.NoError(t, err)

	userLockID := [32]byte{1}
	h.sourceAd.seedLock(userLockID, chainadapter.Lock{
		Beneficiary: operatorAddr,
		HashLock:    swap.HashLock,
		Value:       sourceUnits,
		State:       chainadapter.StateOpen,
	})
	targetUnits, _, err := toSmallestUnits(h.registry, targetChain, "ETH", "1.0")
	require.NoError(t, err)
	poolLockID := [32]byte{2}
	h.targetAd.seedLock(poolLockID, chainadapter.Lock{
		HashLock: swap.HashLock,
		Value:    targetUnits,
		State:    chainadapter.StateOpen,
	})

	status := store.StatusUserHTLCFunded
	lockCopy := userLockID
	poolCopy := poolLockID
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &status, UserLockID: &lockCopy, PoolLockID: &poolCopy})
	require.NoError(t, err)
	fulfilled := store.StatusPoolFulfilled
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &fulfilled})
	require.NoError(t, err)

	swap, err = h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)

	err = h.engine.processSourceSwap(ctx, swap)
	require.NoError(t, err)

	updated, err := h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusUserClaimed, updated.Status)

	claimedLock, err := h.sourceAd.GetLock(ctx, userLockID)
	require.NoError(t, err)
	assert.Equal(t, chainadapter.StateClaimed, claimedLock.State)
}

func TestProcessSourceSwap_PoolValueMismatchFailsSwap(t *testing.T) {
	h := newTestHarness(t, nil)
	h.engine = New(Config{
		ChainName: sourceChain,
		Store:     h.store,
		Ledger:    h.ledger,
		Registry:  h.registry,
		Adapters: func(chain string) (chainadapter.Adapter, bool) {
			if chain == sourceChain {
				return h.sourceAd, true
			}
			return h.targetAd, true
		},
		OperatorAddress: func(chain string) (common.Address, bool) { return operatorAddr, true },
	})
	ctx := context.Background()

	swap := makeSwap(t, h, "1.0")
	sourceUnits, _, err := toSmallestUnits(h.registry, sourceChain, "ETH", "1.0")
	require.NoError(t, err)

	userLockID := [32]byte{9}
	h.sourceAd.seedLock(userLockID, chainadapter.Lock{
		Beneficiary: operatorAddr,
		HashLock:    swap.HashLock,
		Value:       sourceUnits,
		State:       chainadapter.StateOpen,
	})
	poolLockID := [32]byte{10}
	h.targetAd.seedLock(poolLockID, chainadapter.Lock{
		HashLock: swap.HashLock,
		Value:    big.NewInt(1), // far short of the swap's expectedAmount
		State:    chainadapter.StateOpen,
	})

	status := store.StatusUserHTLCFunded
	lockCopy := userLockID
	poolCopy := poolLockID
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &status, UserLockID: &lockCopy, PoolLockID: &poolCopy})
	require.NoError(t, err)
	fulfilled := store.StatusPoolFulfilled
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &fulfilled})
	require.NoError(t, err)
	swap, err = h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)

	err = h.engine.processSourceSwap(ctx, swap)
	assert.ErrorIs(t, err, ErrAmountMismatch)

	updated, err := h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusError, updated.Status)

	claimedLock, err := h.sourceAd.GetLock(ctx, userLockID)
	require.NoError(t, err)
	assert.Equal(t, chainadapter.StateOpen, claimedLock.State, "must not reveal the preimage when the pool lock's value is wrong")
}

func TestProcessSourceSwap_WaitsWhenPoolLockNotYetDeployed(t *testing.T) {
	h := newTestHarness(t, nil)
	h.engine = New(Config{
		ChainName: sourceChain,
		Store:     h.store,
		Ledger:    h.ledger,
		Registry:  h.registry,
		Adapters: func(chain string) (chainadapter.Adapter, bool) {
			if chain == sourceChain {
				return h.sourceAd, true
			}
			return h.targetAd, true
		},
		OperatorAddress: func(chain string) (common.Address, bool) { return operatorAddr, true },
	})
	ctx := context.Background()

	swap := makeSwap(t, h, "1.0")
	sourceUnits, _, err := toSmallestUnits(h.registry, sourceChain, "ETH", "1.0")
	require.NoError(t, err)

	userLockID := [32]byte{3}
	h.sourceAd.seedLock(userLockID, chainadapter.Lock{
		Beneficiary: operatorAddr,
		HashLock:    swap.HashLock,
		Value:       sourceUnits,
		State:       chainadapter.StateOpen,
	})
	status := store.StatusUserHTLCFunded
	lockCopy := userLockID
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &status, UserLockID: &lockCopy})
	require.NoError(t, err)
	fulfilled := store.StatusPoolFulfilled
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &fulfilled})
	require.NoError(t, err)
	swap, err = h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)

	err = h.engine.processSourceSwap(ctx, swap)
	require.NoError(t, err)

	updated, err := h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPoolFulfilled, updated.Status, "must not claim until the pool lock is visible")
}

func TestProcessSourceSwap_HashMismatchFailsSwap(t *testing.T) {
	h := newTestHarness(t, nil)
	h.engine = New(Config{
		ChainName: sourceChain,
		Store:     h.store,
		Ledger:    h.ledger,
		Registry:  h.registry,
		Adapters: func(chain string) (chainadapter.Adapter, bool) {
			if chain == sourceChain {
				return h.sourceAd, true
			}
			return h.targetAd, true
		},
		OperatorAddress: func(chain string) (common.Address, bool) { return operatorAddr, true },
	})
	ctx := context.Background()

	swap := makeSwap(t, h, "1.0")
	sourceUnits, _, err := toSmallestUnits(h.registry, sourceChain, "ETH", "1.0")
	require.NoError(t, err)

	userLockID := [32]byte{4}
	wrongHash := [32]byte{0xFF}
	h.sourceAd.seedLock(userLockID, chainadapter.Lock{
		Beneficiary: operatorAddr,
		HashLock:    wrongHash,
		Value:       sourceUnits,
		State:       chainadapter.StateOpen,
	})
	status := store.StatusUserHTLCFunded
	lockCopy := userLockID
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &status, UserLockID: &lockCopy})
	require.NoError(t, err)
	fulfilled := store.StatusPoolFulfilled
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &fulfilled})
	require.NoError(t, err)
	swap, err = h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)

	err = h.engine.processSourceSwap(ctx, swap)
	assert.ErrorIs(t, err, ErrHashMismatch)

	updated, err := h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusError, updated.Status)
}

func TestExpireIfDue_TransitionsThenRefunds(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.ledger.Seed(ctx, targetChain, "ETH", 5_000_000_000_000_000_000, 0))

	preimage := [32]byte{7}
	draft := store.Draft{
		UserAddress:        userAddr.Hex(),
		BeneficiaryAddress: userAddr.Hex(),
		SourceChain:        sourceChain,
		SourceToken:        "ETH",
		SourceAmount:       "1.0",
		TargetChain:        targetChain,
		TargetToken:        "ETH",
		ExpectedAmount:     "1.0",
		SlippageTolerance:  0.01,
		Preimage:           preimage,
		HashLock:           sha256.Sum256(preimage[:]),
		ExpirationTime:     time.Now().Add(time.Hour).Unix(),
	}
	swap, err := h.store.CreateSwap(ctx, draft)
	require.NoError(t, err)

	poolLockID := [32]byte{8}
	h.targetAd.seedLock(poolLockID, chainadapter.Lock{
		HashLock: swap.HashLock,
		State:    chainadapter.StateOpen,
	})
	funded := store.StatusUserHTLCFunded
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &funded})
	require.NoError(t, err)
	status := store.StatusPoolFulfilled
	lockCopy := poolLockID
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &status, PoolLockID: &lockCopy})
	require.NoError(t, err)
	// The draft must honor MIN_TIMELOCK at creation, so back-date the
	// already-persisted swap directly to simulate one whose window has
	// since elapsed.
	expired := time.Now().Add(-time.Minute).Unix()
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{ExpirationTime: &expired})
	require.NoError(t, err)
	swap, err = h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)

	handled := h.engine.expireIfDue(ctx, swap, store.RoleTarget)
	assert.True(t, handled)

	swap, err = h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusExpired, swap.Status)

	handled = h.engine.expireIfDue(ctx, swap, store.RoleTarget)
	assert.True(t, handled)

	swap, err = h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRefunded, swap.Status)

	lock, err := h.targetAd.GetLock(ctx, poolLockID)
	require.NoError(t, err)
	assert.Equal(t, chainadapter.StateRefunded, lock.State)
}

func TestExpireIfDue_NotExpiredYet(t *testing.T) {
	h := newTestHarness(t, nil)
	swap := makeSwap(t, h, "1.0")
	handled := h.engine.expireIfDue(context.Background(), swap, store.RoleTarget)
	assert.False(t, handled)
}

func TestObservePoolClaim_WaitsUntilUserClaims(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	swap := makeSwap(t, h, "1.0")
	poolLockID := [32]byte{6}
	h.targetAd.seedLock(poolLockID, chainadapter.Lock{
		HashLock: swap.HashLock,
		State:    chainadapter.StateOpen,
	})

	funded := store.StatusUserHTLCFunded
	_, err := h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &funded})
	require.NoError(t, err)
	fulfilled := store.StatusPoolFulfilled
	lockCopy := poolLockID
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &fulfilled, PoolLockID: &lockCopy})
	require.NoError(t, err)
	claimed := store.StatusUserClaimed
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &claimed})
	require.NoError(t, err)

	swap, err = h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)

	require.NoError(t, h.engine.observePoolClaim(ctx, swap))

	updated, err := h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusUserClaimed, updated.Status, "must not settle until the pool lock shows CLAIMED")

	h.targetAd.seedLock(poolLockID, chainadapter.Lock{
		HashLock: swap.HashLock,
		State:    chainadapter.StateClaimed,
	})
	require.NoError(t, h.engine.observePoolClaim(ctx, swap))

	updated, err = h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPoolClaimed, updated.Status)
}

func TestObservePoolClaim_ReleasesReservation(t *testing.T) {
	h := newTestHarness(t, NewFixedRatioSource(map[string]map[string]float64{"ETH": {"ETH": 1.0}}))
	ctx := context.Background()
	require.NoError(t, h.ledger.Seed(ctx, targetChain, "ETH", 5_000_000_000_000_000_000, 0))

	swap := markUserHTLCFunded(t, h, makeSwap(t, h, "1.0"))
	require.NoError(t, h.engine.processTargetSwap(ctx, swap))

	balance, err := h.ledger.Observe(ctx, targetChain, "ETH")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000_000_000_000), balance.Reserved, "reservation held while in POOL_FULFILLED")

	swap, err = h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	claimed := store.StatusUserClaimed
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &claimed})
	require.NoError(t, err)
	swap, err = h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)

	h.targetAd.seedLock(*swap.PoolLockID, chainadapter.Lock{
		HashLock: swap.HashLock,
		State:    chainadapter.StateClaimed,
	})
	require.NoError(t, h.engine.observePoolClaim(ctx, swap))

	balance, err = h.ledger.Observe(ctx, targetChain, "ETH")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Reserved, "POOL_CLAIMED must release the reservation")
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) Broadcast(swapID string, eventType store.EventType, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, swapID+":"+string(eventType))
}

func TestObservePoolClaimEmitsToEventSink(t *testing.T) {
	h := newTestHarness(t, nil)
	sink := &recordingSink{}
	h.engine.events = sink
	ctx := context.Background()

	swap := makeSwap(t, h, "1.0")
	poolLockID := [32]byte{7}
	h.targetAd.seedLock(poolLockID, chainadapter.Lock{
		HashLock: swap.HashLock,
		State:    chainadapter.StateClaimed,
	})

	funded := store.StatusUserHTLCFunded
	_, err := h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &funded})
	require.NoError(t, err)
	fulfilled := store.StatusPoolFulfilled
	lockCopy := poolLockID
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &fulfilled, PoolLockID: &lockCopy})
	require.NoError(t, err)
	claimed := store.StatusUserClaimed
	_, err = h.store.UpdateSwap(ctx, swap.ID, store.Patch{Status: &claimed})
	require.NoError(t, err)

	swap, err = h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)

	require.NoError(t, h.engine.observePoolClaim(ctx, swap))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []string{swap.ID + ":POOL_CLAIMED"}, sink.events)
}
