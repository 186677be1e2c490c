package resolver

import "errors"

var (
	ErrPriceUnreasonable = errors.New("resolver: implied price outside acceptance band")
	ErrAmountMismatch    = errors.New("resolver: on-chain lock value does not match swap amount")
	ErrHashMismatch      = errors.New("resolver: on-chain hash lock does not match swap hash lock")
	ErrBeneficiaryWrong  = errors.New("resolver: lock beneficiary is not the operator's address")
	ErrLockNotOpen       = errors.New("resolver: lock is not in the OPEN state")
	ErrUnsupportedPair   = errors.New("resolver: chain/token pair is not supported")
	ErrMaxRetriesReached = errors.New("resolver: swap exceeded its retry budget")
)
