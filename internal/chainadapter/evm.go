package chainadapter

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/meridian-labs/resolverd/pkg/logging"
)

// TransactorFunc produces fresh TransactOpts for a write call, the way the
// teacher's newTransactor helper did, but sourced from whatever signer
// backs this adapter rather than a key held by the adapter itself.
type TransactorFunc func(ctx context.Context) (*bind.TransactOpts, error)

// EVMAdapter implements Adapter against an EVM-compatible chain speaking
// one of the two supported HTLC ABI dialects.
type EVMAdapter struct {
	chainName      string
	client         *ethclient.Client
	fallbacks      []*ethclient.Client
	htlcAddr       common.Address
	htlcABI        abi.ABI
	erc20ABI       abi.ABI
	transactor     TransactorFunc
	retryPolicy    RetryPolicy
	dialects       *dialectCache
	minter         *lockIDMinter
	lookbackBlocks uint64
	gasLimit       uint64
	maxGasPrice    *big.Int
	log            *logging.Logger
}

// EVMAdapterConfig configures a new EVMAdapter.
type EVMAdapterConfig struct {
	ChainName   string
	Client      *ethclient.Client
	Fallbacks   []*ethclient.Client
	HTLCAddress common.Address
	Transactor  TransactorFunc
	RetryPolicy RetryPolicy
	// LookbackBlocks bounds how far back FindLockByParties scans for a
	// user-submitted Locked event. Zero uses a conservative default.
	LookbackBlocks uint64
	// GasLimit caps the gas submitted with every write call. Zero leaves
	// estimation to bind.BoundContract.
	GasLimit uint64
	// MaxGasPrice caps the per-gas price (wei) a transaction will pay. Nil
	// leaves the price to the client's own suggestion.
	MaxGasPrice *big.Int
	Logger      *logging.Logger
}

// NewEVMAdapter builds an EVMAdapter from already-dialed clients.
func NewEVMAdapter(cfg EVMAdapterConfig) (*EVMAdapter, error) {
	htlcABI, err := abi.JSON(strings.NewReader(htlcABIJSON))
	if err != nil {
		return nil, fmt.Errorf("chainadapter: parse htlc abi: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("chainadapter: parse erc20 abi: %w", err)
	}

	policy := cfg.RetryPolicy
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy()
	}

	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}

	lookback := cfg.LookbackBlocks
	if lookback == 0 {
		lookback = 50_000
	}

	return &EVMAdapter{
		chainName:      cfg.ChainName,
		client:         cfg.Client,
		fallbacks:      cfg.Fallbacks,
		htlcAddr:       cfg.HTLCAddress,
		htlcABI:        htlcABI,
		erc20ABI:       erc20ABI,
		transactor:     cfg.Transactor,
		retryPolicy:    policy,
		dialects:       newDialectCache(),
		minter:         &lockIDMinter{},
		lookbackBlocks: lookback,
		gasLimit:       cfg.GasLimit,
		maxGasPrice:    cfg.MaxGasPrice,
		log:            log.Component("chainadapter." + cfg.ChainName),
	}, nil
}

// applyGasCaps sets the configured gas limit on opts and, when a max price
// is configured, the client's suggested gas price capped at that maximum
// (the maximum itself if the suggestion cannot be fetched), leaving
// zero/nil fields alone so bind.BoundContract falls back to its own
// estimation and suggestion. opts.Context must already be set.
func (a *EVMAdapter) applyGasCaps(opts *bind.TransactOpts) {
	if a.gasLimit > 0 {
		opts.GasLimit = a.gasLimit
	}
	if a.maxGasPrice != nil {
		opts.GasPrice = a.maxGasPrice
		if suggested, err := a.client.SuggestGasPrice(opts.Context); err == nil && suggested.Cmp(a.maxGasPrice) < 0 {
			opts.GasPrice = suggested
		}
	}
}

func (a *EVMAdapter) ChainName() string { return a.chainName }

func (a *EVMAdapter) NextLockID(originator, beneficiary common.Address, hashLock [32]byte, timelock uint64, token common.Address, value *big.Int) ([32]byte, error) {
	return a.minter.next(originator, beneficiary, hashLock, timelock, token, value)
}

func (a *EVMAdapter) boundHTLC() *bind.BoundContract {
	return bind.NewBoundContract(a.htlcAddr, a.htlcABI, a.client, a.client, a.client)
}

func (a *EVMAdapter) boundERC20(token common.Address) *bind.BoundContract {
	return bind.NewBoundContract(token, a.erc20ABI, a.client, a.client, a.client)
}

// Lock escrows value under lockId. For ERC-20 tokens it first raises the
// HTLC contract's allowance if the current allowance is insufficient.
func (a *EVMAdapter) Lock(ctx context.Context, lockID [32]byte, token common.Address, beneficiary common.Address, hashLock [32]byte, timelock uint64, value *big.Int) (*TxResult, error) {
	opts, err := a.transactor(ctx)
	if err != nil {
		return nil, fmt.Errorf("chainadapter: transactor: %w", err)
	}
	opts.Context = ctx
	a.applyGasCaps(opts)

	if token != NativeToken {
		if err := a.ensureAllowance(ctx, opts.From, token, value); err != nil {
			return nil, err
		}
		opts.Value = nil
	} else {
		opts.Value = value
	}

	var tx *types.Transaction
	err = withRetry(ctx, a.retryPolicy, func() error {
		var txErr error
		tx, txErr = a.boundHTLC().Transact(opts, "lock", lockID, token, beneficiary, hashLock, new(big.Int).SetUint64(timelock), value)
		return txErr
	})
	if err != nil {
		return nil, classifyLockError(err)
	}
	return &TxResult{Hash: tx.Hash()}, nil
}

func (a *EVMAdapter) ensureAllowance(ctx context.Context, owner, token common.Address, need *big.Int) error {
	var current *big.Int
	err := withRetry(ctx, a.retryPolicy, func() error {
		out, callErr := a.boundERC20(token).CallRaw(&bind.CallOpts{Context: ctx}, a.mustPack(a.erc20ABI, "allowance", owner, a.htlcAddr))
		if callErr != nil {
			return callErr
		}
		values, unpackErr := a.erc20ABI.Unpack("allowance", out)
		if unpackErr != nil || len(values) == 0 {
			return fmt.Errorf("chainadapter: unpack allowance: %w", unpackErr)
		}
		current = values[0].(*big.Int)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if current.Cmp(need) >= 0 {
		return nil
	}

	opts, err := a.transactor(ctx)
	if err != nil {
		return fmt.Errorf("chainadapter: transactor: %w", err)
	}
	opts.Context = ctx
	a.applyGasCaps(opts)

	err = withRetry(ctx, a.retryPolicy, func() error {
		_, txErr := a.boundERC20(token).Transact(opts, "approve", a.htlcAddr, need)
		return txErr
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAllowanceFailed, err)
	}
	return nil
}

func (a *EVMAdapter) mustPack(contractABI abi.ABI, method string, args ...interface{}) []byte {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		panic(fmt.Sprintf("chainadapter: pack %s: %v", method, err))
	}
	return data
}

// Claim submits a claim transaction for an OPEN lock.
func (a *EVMAdapter) Claim(ctx context.Context, lockID [32]byte, preimage [32]byte) (*TxResult, error) {
	opts, err := a.transactor(ctx)
	if err != nil {
		return nil, fmt.Errorf("chainadapter: transactor: %w", err)
	}
	opts.Context = ctx
	a.applyGasCaps(opts)

	var tx *types.Transaction
	err = withRetry(ctx, a.retryPolicy, func() error {
		var txErr error
		tx, txErr = a.boundHTLC().Transact(opts, "claim", lockID, preimage)
		return txErr
	})
	if err != nil {
		return nil, classifyClaimError(err)
	}
	return &TxResult{Hash: tx.Hash()}, nil
}

// Refund submits a refund transaction for an expired, still-OPEN lock.
func (a *EVMAdapter) Refund(ctx context.Context, lockID [32]byte) (*TxResult, error) {
	opts, err := a.transactor(ctx)
	if err != nil {
		return nil, fmt.Errorf("chainadapter: transactor: %w", err)
	}
	opts.Context = ctx
	a.applyGasCaps(opts)

	var tx *types.Transaction
	err = withRetry(ctx, a.retryPolicy, func() error {
		var txErr error
		tx, txErr = a.boundHTLC().Transact(opts, "refund", lockID)
		return txErr
	})
	if err != nil {
		if !isRetryable(err) {
			return nil, fmt.Errorf("%w: %v", ErrNotRefundable, err)
		}
		return nil, err
	}
	return &TxResult{Hash: tx.Hash()}, nil
}

// GetLock reads a lock's state, detecting the contract's dialect on first use.
func (a *EVMAdapter) GetLock(ctx context.Context, lockID [32]byte) (Lock, error) {
	d, err := a.dialects.detect(ctx, a.htlcAddr, a.probeDialect)
	if err != nil {
		return Lock{}, err
	}

	var out []interface{}
	err = withRetry(ctx, a.retryPolicy, func() error {
		return a.boundHTLC().Call(&bind.CallOpts{Context: ctx}, &out, string(d), lockID)
	})
	if err != nil {
		return Lock{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	return decodeLock(out)
}

// FindLockByParties scans the last lookbackBlocks blocks for a Locked event
// between originator and beneficiary, returning the lockId it was emitted
// under. hashLock is intentionally not part of the filter: only lockId and
// hashLock are indexed topics on this event, and a lock funded under a
// tampered hashLock must still be discoverable so the caller can compare it
// against the expected one and reject it, rather than filtering it out of
// existence. This is how the adapter discovers a lock it did not mint
// itself, such as a user's own HTLC funding transaction.
func (a *EVMAdapter) FindLockByParties(ctx context.Context, originator, beneficiary common.Address) ([32]byte, bool, error) {
	event, ok := a.htlcABI.Events["Locked"]
	if !ok {
		return [32]byte{}, false, fmt.Errorf("chainadapter: htlc abi has no Locked event")
	}

	head, err := a.headerSource(ctx)
	if err != nil {
		return [32]byte{}, false, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	var from int64
	if head.Number.Uint64() > a.lookbackBlocks {
		from = int64(head.Number.Uint64() - a.lookbackBlocks)
	}

	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(from),
		ToBlock:   head.Number,
		Addresses: []common.Address{a.htlcAddr},
		Topics:    [][]common.Hash{{event.ID}},
	}

	var logs []types.Log
	err = withRetry(ctx, a.retryPolicy, func() error {
		var logErr error
		logs, logErr = a.client.FilterLogs(ctx, query)
		return logErr
	})
	if err != nil {
		return [32]byte{}, false, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	for _, l := range logs {
		if len(l.Topics) < 2 {
			continue
		}
		values, err := event.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil || len(values) < 2 {
			continue
		}
		logOriginator, ok1 := values[0].(common.Address)
		logBeneficiary, ok2 := values[1].(common.Address)
		if !ok1 || !ok2 || logOriginator != originator || logBeneficiary != beneficiary {
			continue
		}
		var lockID [32]byte
		copy(lockID[:], l.Topics[1].Bytes())
		return lockID, true, nil
	}
	return [32]byte{}, false, nil
}

func (a *EVMAdapter) probeDialect(ctx context.Context, d dialect) error {
	var out []interface{}
	return a.boundHTLC().Call(&bind.CallOpts{Context: ctx}, &out, string(d), sentinelLockID)
}

func decodeLock(out []interface{}) (Lock, error) {
	if len(out) != 7 {
		return Lock{}, fmt.Errorf("chainadapter: unexpected lock tuple arity %d", len(out))
	}
	lock := Lock{
		Token:       out[0].(common.Address),
		Beneficiary: out[1].(common.Address),
		Originator:  out[2].(common.Address),
		HashLock:    out[3].([32]byte),
		Timelock:    out[4].(*big.Int).Uint64(),
		Value:       out[5].(*big.Int),
		State:       LockState(out[6].(uint8)),
	}
	return lock, nil
}

// CurrentChainTime returns the latest block header's timestamp.
func (a *EVMAdapter) CurrentChainTime(ctx context.Context) (uint64, error) {
	var header *types.Header
	err := withRetry(ctx, a.retryPolicy, func() error {
		var headerErr error
		header, headerErr = a.headerSource(ctx)
		return headerErr
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return header.Time, nil
}

func (a *EVMAdapter) headerSource(ctx context.Context) (*types.Header, error) {
	header, err := a.client.HeaderByNumber(ctx, nil)
	if err == nil {
		return header, nil
	}
	for _, fb := range a.fallbacks {
		if header, ferr := fb.HeaderByNumber(ctx, nil); ferr == nil {
			return header, nil
		}
	}
	return nil, err
}

// WaitForConfirmation blocks until tx has at least depth confirmations.
func (a *EVMAdapter) WaitForConfirmation(ctx context.Context, tx *TxResult, depth uint64) (*TxResult, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		receipt, err := a.client.TransactionReceipt(ctx, tx.Hash)
		if err != nil {
			if err != ethereum.NotFound {
				a.log.Debug("waiting for receipt", "tx", tx.Hash.Hex(), "err", err)
			}
			if waitErr := sleepOrDone(ctx); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		if receipt.Status == types.ReceiptStatusFailed {
			return nil, fmt.Errorf("%w: tx %s", ErrReverted, tx.Hash.Hex())
		}

		head, err := a.client.HeaderByNumber(ctx, nil)
		if err != nil {
			if waitErr := sleepOrDone(ctx); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		confirmations := head.Number.Uint64() - receipt.BlockNumber.Uint64() + 1
		if confirmations >= depth {
			return &TxResult{Hash: tx.Hash, BlockNumber: receipt.BlockNumber.Uint64()}, nil
		}
		if waitErr := sleepOrDone(ctx); waitErr != nil {
			return nil, waitErr
		}
	}
}

func classifyLockError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
	case strings.Contains(msg, "duplicate") || strings.Contains(msg, "already exists") || strings.Contains(msg, "already locked"):
		return fmt.Errorf("%w: %v", ErrDuplicateLockID, err)
	case strings.Contains(msg, "revert"):
		return fmt.Errorf("%w: %v", ErrReverted, err)
	default:
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
}

func classifyClaimError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "preimage") || strings.Contains(msg, "hash"):
		return fmt.Errorf("%w: %v", ErrWrongPreimage, err)
	case strings.Contains(msg, "not open") || strings.Contains(msg, "claimed") || strings.Contains(msg, "refunded"):
		return fmt.Errorf("%w: %v", ErrNotClaimable, err)
	case strings.Contains(msg, "revert"):
		return fmt.Errorf("%w: %v", ErrReverted, err)
	default:
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
}
