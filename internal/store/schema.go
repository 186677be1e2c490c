package store

const schema = `
CREATE TABLE IF NOT EXISTS swaps (
	id                  TEXT PRIMARY KEY,
	status              TEXT NOT NULL,
	user_address        TEXT NOT NULL,
	beneficiary_address TEXT NOT NULL,
	source_chain        TEXT NOT NULL,
	source_token        TEXT NOT NULL,
	source_amount       TEXT NOT NULL,
	target_chain        TEXT NOT NULL,
	target_token        TEXT NOT NULL,
	expected_amount     TEXT NOT NULL,
	slippage_tolerance  REAL NOT NULL,
	preimage            BLOB NOT NULL,
	hash_lock           BLOB NOT NULL,
	user_lock_id        BLOB,
	pool_lock_id        BLOB,
	expiration_time     INTEGER NOT NULL,
	created_at          INTEGER NOT NULL,
	updated_at          INTEGER NOT NULL,
	matched_at          INTEGER,
	pool_claimed_at     INTEGER
);

CREATE INDEX IF NOT EXISTS idx_swaps_status_source ON swaps(status, source_chain);
CREATE INDEX IF NOT EXISTS idx_swaps_status_target ON swaps(status, target_chain);
CREATE INDEX IF NOT EXISTS idx_swaps_created_at ON swaps(created_at);

CREATE TABLE IF NOT EXISTS swap_events (
	id        TEXT PRIMARY KEY,
	swap_id   TEXT NOT NULL REFERENCES swaps(id),
	type      TEXT NOT NULL,
	data      TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_swap_events_swap_id ON swap_events(swap_id, timestamp);

CREATE TABLE IF NOT EXISTS resolver_operations (
	id            TEXT PRIMARY KEY,
	swap_id       TEXT NOT NULL REFERENCES swaps(id),
	type          TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    INTEGER NOT NULL,
	completed_at  INTEGER,
	error_message TEXT NOT NULL DEFAULT '',
	tx_hash       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_resolver_operations_swap_id ON resolver_operations(swap_id);
`

// migrations holds forward-only, best-effort ALTER TABLE statements applied
// after the base schema. A statement failing because the column already
// exists is swallowed; any other failure is fatal at startup.
var migrations = []string{}
