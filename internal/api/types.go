package api

import (
	"time"

	"github.com/meridian-labs/resolverd/internal/store"
)

// swapInfo is the public, JSON-facing projection of a store.Swap. The
// preimage never appears here.
type swapInfo struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	UserAddress        string     `json:"userAddress"`
	BeneficiaryAddress string     `json:"beneficiaryAddress"`
	SourceChain        string     `json:"sourceChain"`
	SourceToken        string     `json:"sourceToken"`
	SourceAmount       string     `json:"sourceAmount"`
	TargetChain        string     `json:"targetChain"`
	TargetToken        string     `json:"targetToken"`
	ExpectedAmount     string     `json:"expectedAmount"`
	SlippageTolerance  float64    `json:"slippageTolerance"`
	HashLock           string     `json:"hashLock"`
	ExpirationTime     int64      `json:"expirationTime"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	MatchedAt          *time.Time `json:"matchedAt,omitempty"`
	PoolClaimedAt      *time.Time `json:"poolClaimedAt,omitempty"`
}

func swapToInfo(s *store.Swap) swapInfo {
	return swapInfo{
		ID:                 s.ID,
		Status:             string(s.Status),
		UserAddress:        s.UserAddress,
		BeneficiaryAddress: s.BeneficiaryAddress,
		SourceChain:        s.SourceChain,
		SourceToken:        s.SourceToken,
		SourceAmount:       s.SourceAmount,
		TargetChain:        s.TargetChain,
		TargetToken:        s.TargetToken,
		ExpectedAmount:     s.ExpectedAmount,
		SlippageTolerance:  s.SlippageTolerance,
		HashLock:           hexEncode(s.HashLock[:]),
		ExpirationTime:     s.ExpirationTime,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
		MatchedAt:          s.MatchedAt,
		PoolClaimedAt:      s.PoolClaimedAt,
	}
}

// operationInfo is the public projection of a store.ResolverOperation.
type operationInfo struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	TxHash       string     `json:"txHash,omitempty"`
}

func operationToInfo(op *store.ResolverOperation) operationInfo {
	return operationInfo{
		ID:           op.ID,
		Type:         string(op.Type),
		Status:       string(op.Status),
		StartedAt:    op.StartedAt,
		CompletedAt:  op.CompletedAt,
		ErrorMessage: op.ErrorMessage,
		TxHash:       op.TxHash,
	}
}
