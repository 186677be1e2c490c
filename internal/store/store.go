package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/meridian-labs/resolverd/pkg/logging"
)

// MinTimelock is the shortest window a draft may leave between creation
// and its requested expirationTime. Anything tighter does not leave
// enough room for detection, pool deployment, and claim to all land
// on-chain before a timelock forces a refund instead.
const MinTimelock = time.Hour

// Store is the SQLite-backed Swap Store. It holds a single-writer
// connection pool: SQLite allows many readers but only one writer at a
// time, and WAL mode lets readers proceed without blocking on a writer.
type Store struct {
	db  *sql.DB
	log *logging.Logger
}

// Open connects to (and creates if necessary) the SQLite database at path,
// applying the schema idempotently.
func Open(path string, log *logging.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if log == nil {
		log = logging.Default()
	}

	s := &Store{db: db, log: log.Component("store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil && !strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
			return fmt.Errorf("store: apply migration %q: %w", stmt, err)
		}
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func validateDraft(d Draft) error {
	switch {
	case d.SourceChain == d.TargetChain:
		return fmt.Errorf("%w: sourceChain and targetChain must differ", ErrInvalidDraft)
	case d.SlippageTolerance < 0 || d.SlippageTolerance > 1:
		return fmt.Errorf("%w: slippageTolerance must be within [0,1]", ErrInvalidDraft)
	case d.UserAddress == "" || d.BeneficiaryAddress == "":
		return fmt.Errorf("%w: user and beneficiary addresses are required", ErrInvalidDraft)
	}

	sourceAmount, err := strconv.ParseFloat(d.SourceAmount, 64)
	if err != nil || sourceAmount <= 0 {
		return fmt.Errorf("%w: sourceAmount must be a positive decimal", ErrInvalidDraft)
	}
	expectedAmount, err := strconv.ParseFloat(d.ExpectedAmount, 64)
	if err != nil || expectedAmount <= 0 {
		return fmt.Errorf("%w: expectedAmount must be a positive decimal", ErrInvalidDraft)
	}

	if d.ExpirationTime-time.Now().UTC().Unix() < int64(MinTimelock.Seconds()) {
		return fmt.Errorf("%w: expirationTime must be at least %s out", ErrInvalidDraft, MinTimelock)
	}

	want := sha256.Sum256(d.Preimage[:])
	if want != d.HashLock {
		return fmt.Errorf("%w: hashLock does not match SHA-256(preimage)", ErrInvalidDraft)
	}
	return nil
}

// CreateSwap validates draft, then writes the swap and an INITIATED event
// in a single transaction.
func (s *Store) CreateSwap(ctx context.Context, d Draft) (*Swap, error) {
	if err := validateDraft(d); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	swap := &Swap{
		ID:                  uuid.NewString(),
		Status:              StatusPending,
		UserAddress:         d.UserAddress,
		BeneficiaryAddress:  d.BeneficiaryAddress,
		SourceChain:         d.SourceChain,
		SourceToken:         d.SourceToken,
		SourceAmount:        d.SourceAmount,
		TargetChain:         d.TargetChain,
		TargetToken:         d.TargetToken,
		ExpectedAmount:      d.ExpectedAmount,
		SlippageTolerance:   d.SlippageTolerance,
		Preimage:            d.Preimage,
		HashLock:            d.HashLock,
		ExpirationTime:      d.ExpirationTime,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertSwap(tx, swap); err != nil {
			return err
		}
		return insertEvent(tx, SwapEvent{
			ID:        uuid.NewString(),
			SwapID:    swap.ID,
			Type:      EventInitiated,
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return swap, nil
}

func insertSwap(tx *sql.Tx, swap *Swap) error {
	_, err := tx.Exec(`
		INSERT INTO swaps (
			id, status, user_address, beneficiary_address,
			source_chain, source_token, source_amount,
			target_chain, target_token, expected_amount, slippage_tolerance,
			preimage, hash_lock, user_lock_id, pool_lock_id, expiration_time,
			created_at, updated_at, matched_at, pool_claimed_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		swap.ID, string(swap.Status), swap.UserAddress, swap.BeneficiaryAddress,
		swap.SourceChain, swap.SourceToken, swap.SourceAmount,
		swap.TargetChain, swap.TargetToken, swap.ExpectedAmount, swap.SlippageTolerance,
		swap.Preimage[:], swap.HashLock[:], lockIDBytes(swap.UserLockID), lockIDBytes(swap.PoolLockID), swap.ExpirationTime,
		swap.CreatedAt.Unix(), swap.UpdatedAt.Unix(), nullableTime(swap.MatchedAt), nullableTime(swap.PoolClaimedAt),
	)
	if err != nil {
		return fmt.Errorf("store: insert swap: %w", err)
	}
	return nil
}

func insertEvent(tx *sql.Tx, ev SwapEvent) error {
	_, err := tx.Exec(`INSERT INTO swap_events (id, swap_id, type, data, timestamp) VALUES (?,?,?,?,?)`,
		ev.ID, ev.SwapID, string(ev.Type), ev.Data, ev.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("store: insert event: %w", err)
	}
	return nil
}

func lockIDBytes(id *[32]byte) []byte {
	if id == nil {
		return nil
	}
	return id[:]
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

// GetSwap returns one swap by id.
func (s *Store) GetSwap(ctx context.Context, id string) (*Swap, error) {
	row := s.db.QueryRowContext(ctx, swapSelectColumns+` WHERE id = ?`, id)
	swap, err := scanSwap(row)
	if err == sql.ErrNoRows {
		return nil, ErrSwapNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get swap %s: %w", id, err)
	}
	return swap, nil
}

// ListSwaps returns swaps matching filter, newest first, paginated.
func (s *Store) ListSwaps(ctx context.Context, filter Filter, limit, offset int) ([]*Swap, error) {
	query := strings.Builder{}
	query.WriteString(swapSelectColumns)
	var args []interface{}
	var clauses []string

	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.SourceChain != "" {
		clauses = append(clauses, "source_chain = ?")
		args = append(args, filter.SourceChain)
	}
	if filter.TargetChain != "" {
		clauses = append(clauses, "target_chain = ?")
		args = append(args, filter.TargetChain)
	}
	if filter.UserAddress != "" {
		clauses = append(clauses, "user_address = ?")
		args = append(args, filter.UserAddress)
	}
	if len(clauses) > 0 {
		query.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}
	query.WriteString(" ORDER BY created_at DESC LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list swaps: %w", err)
	}
	defer rows.Close()
	return scanSwaps(rows)
}

// GetPendingSwapsForRole returns swaps with outstanding work for chain
// acting in role, ordered oldest-first for FIFO fairness.
func (s *Store) GetPendingSwapsForRole(ctx context.Context, chain string, role Role, limit int) ([]*Swap, error) {
	var chainColumn, statusClause string
	switch role {
	case RoleTarget:
		chainColumn = "target_chain"
		// The target engine deploys the pool lock once the source engine has
		// validated the user's lock (USER_HTLC_FUNDED), then later polls for
		// the user's own claim of that same lock (USER_CLAIMED).
		statusClause = "status IN (?, ?, ?)"
	case RoleSource:
		chainColumn = "source_chain"
		statusClause = "status IN (?, ?, ?)"
	default:
		return nil, fmt.Errorf("store: unknown role %q", role)
	}

	query := swapSelectColumns + fmt.Sprintf(" WHERE %s = ? AND %s ORDER BY created_at ASC LIMIT ?", chainColumn, statusClause)

	var args []interface{}
	args = append(args, chain)
	if role == RoleTarget {
		args = append(args, string(StatusUserHTLCFunded), string(StatusUserClaimed), string(StatusExpired))
	} else {
		// The source engine both detects the initial user lock (PENDING)
		// and, once the pool leg is deployed, claims it (POOL_FULFILLED).
		args = append(args, string(StatusPending), string(StatusPoolFulfilled), string(StatusExpired))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get pending swaps for %s/%s: %w", chain, role, err)
	}
	defer rows.Close()
	return scanSwaps(rows)
}

// UpdateSwap applies patch to a swap after verifying the transition is
// monotonic. Returns ErrInvalidTransition if patch.Status moves backward.
func (s *Store) UpdateSwap(ctx context.Context, id string, patch Patch) (*Swap, error) {
	var updated *Swap
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getSwapTx(tx, id)
		if err != nil {
			return err
		}
		if err := applyPatch(tx, current, patch); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateSwapAndAppendEvent applies patch and appends event in one
// transaction: either both land or neither does.
func (s *Store) UpdateSwapAndAppendEvent(ctx context.Context, id string, patch Patch, event SwapEvent) (*Swap, error) {
	var updated *Swap
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getSwapTx(tx, id)
		if err != nil {
			return err
		}
		if err := applyPatch(tx, current, patch); err != nil {
			return err
		}
		event.SwapID = id
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = current.UpdatedAt
		}
		if err := insertEvent(tx, event); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyPatch(tx *sql.Tx, current *Swap, patch Patch) error {
	now := time.Now().UTC()

	if patch.Status != nil {
		if !canTransition(current.Status, *patch.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, *patch.Status)
		}
		current.Status = *patch.Status
	}
	if patch.UserLockID != nil {
		current.UserLockID = patch.UserLockID
	}
	if patch.PoolLockID != nil {
		current.PoolLockID = patch.PoolLockID
	}
	if patch.MatchedAt != nil {
		current.MatchedAt = patch.MatchedAt
	}
	if patch.PoolClaimedAt != nil {
		current.PoolClaimedAt = patch.PoolClaimedAt
	}
	if patch.ExpirationTime != nil {
		current.ExpirationTime = *patch.ExpirationTime
	}
	current.UpdatedAt = now

	_, err := tx.Exec(`
		UPDATE swaps SET status=?, user_lock_id=?, pool_lock_id=?, matched_at=?, pool_claimed_at=?, expiration_time=?, updated_at=?
		WHERE id=?`,
		string(current.Status), lockIDBytes(current.UserLockID), lockIDBytes(current.PoolLockID),
		nullableTime(current.MatchedAt), nullableTime(current.PoolClaimedAt), current.ExpirationTime, current.UpdatedAt.Unix(),
		current.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update swap %s: %w", current.ID, err)
	}
	return nil
}

// AppendOperation records the start of a resolver operation attempt.
func (s *Store) AppendOperation(ctx context.Context, op ResolverOperation) (*ResolverOperation, error) {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.StartedAt.IsZero() {
		op.StartedAt = time.Now().UTC()
	}
	if op.Status == "" {
		op.Status = OperationInProgress
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolver_operations (id, swap_id, type, status, started_at, completed_at, error_message, tx_hash)
		VALUES (?,?,?,?,?,?,?,?)`,
		op.ID, op.SwapID, string(op.Type), string(op.Status), op.StartedAt.Unix(), nullableTime(op.CompletedAt), op.ErrorMessage, op.TxHash,
	)
	if err != nil {
		return nil, fmt.Errorf("store: append operation: %w", err)
	}
	return &op, nil
}

// FinalizeOperation marks a resolver operation attempt as completed or failed.
func (s *Store) FinalizeOperation(ctx context.Context, id string, status OperationStatus, errMsg, txHash string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE resolver_operations SET status=?, completed_at=?, error_message=?, tx_hash=? WHERE id=?`,
		string(status), now.Unix(), errMsg, txHash, id,
	)
	if err != nil {
		return fmt.Errorf("store: finalize operation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: finalize operation %s: %w", id, err)
	}
	if n == 0 {
		return ErrOperationNotFound
	}
	return nil
}

// ListOperationsForSwap returns every resolver operation recorded against
// swapID, newest first.
func (s *Store) ListOperationsForSwap(ctx context.Context, swapID string, limit int) ([]*ResolverOperation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, swap_id, type, status, started_at, completed_at, error_message, tx_hash
		FROM resolver_operations WHERE swap_id = ? ORDER BY started_at DESC LIMIT ?`, swapID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list operations for swap %s: %w", swapID, err)
	}
	defer rows.Close()

	var out []*ResolverOperation
	for rows.Next() {
		var (
			op          ResolverOperation
			status      string
			opType      string
			completedAt sql.NullInt64
			startedAt   int64
		)
		if err := rows.Scan(&op.ID, &op.SwapID, &opType, &status, &startedAt, &completedAt, &op.ErrorMessage, &op.TxHash); err != nil {
			return nil, fmt.Errorf("store: scan operation row: %w", err)
		}
		op.Type = OperationType(opType)
		op.Status = OperationStatus(status)
		op.StartedAt = time.Unix(startedAt, 0).UTC()
		op.CompletedAt = nullableUnixToTime(completedAt)
		out = append(out, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate operation rows: %w", err)
	}
	return out, nil
}

// ListEventsForSwap returns every event appended against swapID, oldest
// first, in the same commit order a WebSocket subscriber would observe them.
func (s *Store) ListEventsForSwap(ctx context.Context, swapID string) ([]*SwapEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, swap_id, type, data, timestamp
		FROM swap_events WHERE swap_id = ? ORDER BY timestamp ASC`, swapID)
	if err != nil {
		return nil, fmt.Errorf("store: list events for swap %s: %w", swapID, err)
	}
	defer rows.Close()

	var out []*SwapEvent
	for rows.Next() {
		var (
			ev        SwapEvent
			evType    string
			timestamp int64
		)
		if err := rows.Scan(&ev.ID, &ev.SwapID, &evType, &ev.Data, &timestamp); err != nil {
			return nil, fmt.Errorf("store: scan event row: %w", err)
		}
		ev.Type = EventType(evType)
		ev.Timestamp = time.Unix(timestamp, 0).UTC()
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate event rows: %w", err)
	}
	return out, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}
	return nil
}
