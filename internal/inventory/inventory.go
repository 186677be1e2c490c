// Package inventory tracks how much of the pool's own token balance on
// each chain is free to commit to a new swap, preventing the resolver
// engine from promising liquidity it does not have.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meridian-labs/resolverd/pkg/logging"
)

// Balance is a snapshot of one (chain, token)'s inventory position.
// AvailableBalance is derived, never stored independently of total/reserved.
type Balance struct {
	Chain            string
	Token            string
	Total            int64
	Reserved         int64
	MinThreshold     int64
	AvailableBalance int64
}

var (
	// ErrInsufficientLiquidity is returned by Reserve when the requested
	// amount exceeds what is currently available.
	ErrInsufficientLiquidity = errors.New("inventory: insufficient liquidity")
	ErrUnknownPosition       = errors.New("inventory: no inventory position for chain/token")
)

// Ledger is the SQLite-backed pool inventory ledger. It owns the
// pool_inventory table exclusively; the resolver engine and API surface
// never write to it directly.
type Ledger struct {
	db  *sql.DB
	log *logging.Logger
}

// Open connects to the SQLite database at path (resolverd passes its own
// inventory.db file; the tests share the Swap Store's file) and ensures
// the pool_inventory table exists.
func Open(path string, log *logging.Logger) (*Ledger, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("inventory: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if log == nil {
		log = logging.Default()
	}

	if _, err := db.Exec(inventorySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("inventory: apply schema: %w", err)
	}

	return &Ledger{db: db, log: log.Component("inventory")}, nil
}

const inventorySchema = `
CREATE TABLE IF NOT EXISTS pool_inventory (
	chain         TEXT NOT NULL,
	token         TEXT NOT NULL,
	total         INTEGER NOT NULL DEFAULT 0,
	reserved      INTEGER NOT NULL DEFAULT 0,
	min_threshold INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (chain, token)
);
`

// Close releases the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Seed ensures a (chain, token) row exists, initializing total/minThreshold
// if this is the first time the pair is seen. Subsequent calls are no-ops
// for total (use RefreshTotal to update it from an on-chain balance read).
func (l *Ledger) Seed(ctx context.Context, chain, token string, total, minThreshold int64) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO pool_inventory (chain, token, total, reserved, min_threshold)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(chain, token) DO NOTHING`,
		chain, token, total, minThreshold,
	)
	if err != nil {
		return fmt.Errorf("inventory: seed %s/%s: %w", chain, token, err)
	}
	return nil
}

// Reserve atomically decrements available balance by amount. Fails with
// ErrInsufficientLiquidity if total-reserved < amount at commit time.
func (l *Ledger) Reserve(ctx context.Context, chain, token string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("inventory: reserve amount must be positive, got %d", amount)
	}

	res, err := l.db.ExecContext(ctx, `
		UPDATE pool_inventory
		SET reserved = reserved + ?
		WHERE chain = ? AND token = ? AND (total - reserved) >= ?`,
		amount, chain, token, amount,
	)
	if err != nil {
		return fmt.Errorf("inventory: reserve %s/%s: %w", chain, token, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inventory: reserve %s/%s: %w", chain, token, err)
	}
	if n == 0 {
		if _, exists := l.observeRow(ctx, chain, token); !exists {
			return fmt.Errorf("%w: %s/%s", ErrUnknownPosition, chain, token)
		}
		return fmt.Errorf("%w: %s/%s wants %d", ErrInsufficientLiquidity, chain, token, amount)
	}
	return nil
}

// Release atomically increments available balance back by amount, undoing
// a prior Reserve. Callers are responsible for not releasing the same
// reservation twice after crash recovery (see ResolverOperation bookkeeping
// in internal/store), since the ledger itself has no notion of "which
// swap" a reservation belongs to.
func (l *Ledger) Release(ctx context.Context, chain, token string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("inventory: release amount must be positive, got %d", amount)
	}

	res, err := l.db.ExecContext(ctx, `
		UPDATE pool_inventory
		SET reserved = CASE WHEN reserved - ? < 0 THEN 0 ELSE reserved - ? END
		WHERE chain = ? AND token = ?`,
		amount, amount, chain, token,
	)
	if err != nil {
		return fmt.Errorf("inventory: release %s/%s: %w", chain, token, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inventory: release %s/%s: %w", chain, token, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrUnknownPosition, chain, token)
	}
	return nil
}

// RefreshTotal overwrites total with a freshly observed on-chain balance.
// total is treated as a periodically refreshed snapshot, never the source
// of truth for reserved.
func (l *Ledger) RefreshTotal(ctx context.Context, chain, token string, total int64) error {
	res, err := l.db.ExecContext(ctx, `UPDATE pool_inventory SET total = ? WHERE chain = ? AND token = ?`, total, chain, token)
	if err != nil {
		return fmt.Errorf("inventory: refresh total %s/%s: %w", chain, token, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inventory: refresh total %s/%s: %w", chain, token, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrUnknownPosition, chain, token)
	}
	return nil
}

// Observe reads the current total/reserved/minThreshold for a position.
func (l *Ledger) Observe(ctx context.Context, chain, token string) (Balance, error) {
	b, ok := l.observeRow(ctx, chain, token)
	if !ok {
		return Balance{}, fmt.Errorf("%w: %s/%s", ErrUnknownPosition, chain, token)
	}
	return b, nil
}

func (l *Ledger) observeRow(ctx context.Context, chain, token string) (Balance, bool) {
	var b Balance
	err := l.db.QueryRowContext(ctx, `SELECT chain, token, total, reserved, min_threshold FROM pool_inventory WHERE chain = ? AND token = ?`, chain, token).
		Scan(&b.Chain, &b.Token, &b.Total, &b.Reserved, &b.MinThreshold)
	if err != nil {
		return Balance{}, false
	}
	b.AvailableBalance = b.Total - b.Reserved
	return b, true
}
