package store

import (
	"database/sql"
	"fmt"
	"time"
)

const swapSelectColumns = `SELECT
	id, status, user_address, beneficiary_address,
	source_chain, source_token, source_amount,
	target_chain, target_token, expected_amount, slippage_tolerance,
	preimage, hash_lock, user_lock_id, pool_lock_id, expiration_time,
	created_at, updated_at, matched_at, pool_claimed_at
FROM swaps`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSwap(row rowScanner) (*Swap, error) {
	var (
		swap                     Swap
		status                   string
		preimage, hashLock       []byte
		userLockID, poolLockID   []byte
		createdAt, updatedAt     int64
		matchedAt, poolClaimedAt sql.NullInt64
	)

	err := row.Scan(
		&swap.ID, &status, &swap.UserAddress, &swap.BeneficiaryAddress,
		&swap.SourceChain, &swap.SourceToken, &swap.SourceAmount,
		&swap.TargetChain, &swap.TargetToken, &swap.ExpectedAmount, &swap.SlippageTolerance,
		&preimage, &hashLock, &userLockID, &poolLockID, &swap.ExpirationTime,
		&createdAt, &updatedAt, &matchedAt, &poolClaimedAt,
	)
	if err != nil {
		return nil, err
	}

	swap.Status = Status(status)
	copy(swap.Preimage[:], preimage)
	copy(swap.HashLock[:], hashLock)
	swap.UserLockID = bytesToLockID(userLockID)
	swap.PoolLockID = bytesToLockID(poolLockID)
	swap.CreatedAt = time.Unix(createdAt, 0).UTC()
	swap.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	swap.MatchedAt = nullableUnixToTime(matchedAt)
	swap.PoolClaimedAt = nullableUnixToTime(poolClaimedAt)

	return &swap, nil
}

func scanSwaps(rows *sql.Rows) ([]*Swap, error) {
	var out []*Swap
	for rows.Next() {
		swap, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan swap row: %w", err)
		}
		out = append(out, swap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate swap rows: %w", err)
	}
	return out, nil
}

func getSwapTx(tx *sql.Tx, id string) (*Swap, error) {
	row := tx.QueryRow(swapSelectColumns+` WHERE id = ?`, id)
	swap, err := scanSwap(row)
	if err == sql.ErrNoRows {
		return nil, ErrSwapNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get swap %s: %w", id, err)
	}
	return swap, nil
}

func bytesToLockID(b []byte) *[32]byte {
	if len(b) == 0 {
		return nil
	}
	var id [32]byte
	copy(id[:], b)
	return &id
}

func nullableUnixToTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}
